package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/firstbutton/docucal/internal/config"
)

// NewUploadClient returns the client used for backend calls: proxy-aware,
// HTTP/2 enabled when talking to the backend directly.
//
// HTTP/2 is turned off when a proxy is active (many proxies mishandle it) or
// when DISABLE_HTTP2=true. FORCE_HTTP2=true keeps it on behind a proxy.
func NewUploadClient(cfg *config.Config) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	// NTLM wraps the transport; leave it alone.
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	// Documents are mostly already compressed (pdf, jpeg, png)
	tr.DisableCompression = true

	if http2Disabled(cfg) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}
	return client, nil
}

func http2Disabled(cfg *config.Config) bool {
	if os.Getenv("DISABLE_HTTP2") == "true" {
		return true
	}
	if os.Getenv("FORCE_HTTP2") == "true" {
		return false
	}

	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}

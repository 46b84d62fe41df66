package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/firstbutton/docucal/internal/constants"
	"github.com/firstbutton/docucal/internal/models"
)

// Config holds every user-tunable setting.
//
// INI format:
//
//	[docucal]
//	base_url = http://localhost:8000
//	session_file = ~/.config/docucal/session
//
//	[upload]
//	default_color = 1
//	prune_succeeded = false
//	request_timeout_seconds = 300
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//	warmup = false
//
//	[notifications]
//	enabled = false
//
//	[logging]
//	file =
type Config struct {
	// Backend settings
	BaseURL     string
	SessionFile string

	// Upload settings
	DefaultColor models.Tag
	// PruneSucceeded removes already-submitted files from the staging set
	// when a commit aborts part-way. Off by default: an aborted commit
	// leaves the set exactly as it was.
	PruneSucceeded        bool
	RequestTimeoutSeconds int

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // Never written to disk
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	NotificationsEnabled bool

	// LogFile enables a rotating log file when non-empty
	LogFile string
}

// Validation errors
var (
	ErrMissingBaseURL    = errors.New("base_url is required")
	ErrInvalidBaseURL    = errors.New("base_url must be an absolute http or https URL")
	ErrInvalidTimeout    = errors.New("request_timeout_seconds must be between 1 and 3600")
	ErrInvalidProxyMode  = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost  = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidDefaultTag = errors.New("default_color must be between 1 and 11")
)

var validProxyModes = map[string]bool{
	"no-proxy": true,
	"system":   true,
	"basic":    true,
	"ntlm":     true,
}

// NewConfig returns a config populated with defaults.
func NewConfig() *Config {
	return &Config{
		BaseURL:               constants.DefaultBaseURL,
		SessionFile:           DefaultSessionPath(),
		DefaultColor:          models.DefaultTag,
		PruneSucceeded:        false,
		RequestTimeoutSeconds: int(constants.DefaultRequestTimeout / time.Second),
		ProxyMode:             "no-proxy",
		NotificationsEnabled:  false,
	}
}

// Load reads configuration from an INI file.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app := iniFile.Section("docucal")
	cfg.BaseURL = app.Key("base_url").MustString(cfg.BaseURL)
	cfg.SessionFile = ExpandHome(app.Key("session_file").MustString(cfg.SessionFile))

	upload := iniFile.Section("upload")
	cfg.DefaultColor = models.Tag(upload.Key("default_color").MustInt(int(models.DefaultTag)))
	cfg.PruneSucceeded = upload.Key("prune_succeeded").MustBool(false)
	cfg.RequestTimeoutSeconds = upload.Key("request_timeout_seconds").MustInt(cfg.RequestTimeoutSeconds)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = strings.ToLower(proxy.Key("mode").MustString(cfg.ProxyMode))
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	cfg.NotificationsEnabled = iniFile.Section("notifications").Key("enabled").MustBool(false)

	cfg.LogFile = ExpandHome(iniFile.Section("logging").Key("file").String())

	return cfg, nil
}

// Save writes cfg to path atomically with owner-only permissions.
// The proxy password is never persisted.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	app, err := iniFile.NewSection("docucal")
	if err != nil {
		return fmt.Errorf("failed to create docucal section: %w", err)
	}
	app.Key("base_url").SetValue(cfg.BaseURL)
	app.Key("session_file").SetValue(cfg.SessionFile)

	upload, err := iniFile.NewSection("upload")
	if err != nil {
		return fmt.Errorf("failed to create upload section: %w", err)
	}
	upload.Key("default_color").SetValue(cfg.DefaultColor.WireValue())
	upload.Key("prune_succeeded").SetValue(strconv.FormatBool(cfg.PruneSucceeded))
	upload.Key("request_timeout_seconds").SetValue(strconv.Itoa(cfg.RequestTimeoutSeconds))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	notify, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notify.Key("enabled").SetValue(strconv.FormatBool(cfg.NotificationsEnabled))

	logSection, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logSection.Key("file").SetValue(cfg.LogFile)

	return saveAtomic(iniFile, path)
}

// saveAtomic writes via a temp file and rename so a crash never leaves a
// half-written file behind.
func saveAtomic(f *ini.File, path string) error {
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, constants.ConfigFilePerm); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set permissions on %s: %w", path, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// MergeWithFlags applies environment variables and then command-line flags.
// Precedence (highest to lowest): flags > environment > file > defaults.
func (c *Config) MergeWithFlags(baseURL, sessionFile string) {
	if envURL := os.Getenv("DOCUCAL_BASE_URL"); envURL != "" {
		c.BaseURL = envURL
	}
	if envSession := os.Getenv("DOCUCAL_SESSION_FILE"); envSession != "" {
		c.SessionFile = ExpandHome(envSession)
	}
	if envPassword := os.Getenv("DOCUCAL_PROXY_PASSWORD"); envPassword != "" {
		c.ProxyPassword = envPassword
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}

	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if sessionFile != "" {
		c.SessionFile = ExpandHome(sessionFile)
	}

	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http") {
		c.BaseURL = "https://" + c.BaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// parseProxyURL fills host and port from an http(s)://host:port value and
// switches an unset proxy mode to "system".
func (c *Config) parseProxyURL(proxyURL string) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		log.Printf("[WARN] Ignoring unparseable HTTPS_PROXY value %q", proxyURL)
		return
	}
	c.ProxyHost = u.Hostname()
	if port, err := strconv.Atoi(u.Port()); err == nil {
		c.ProxyPort = port
	}
	if c.ProxyMode == "no-proxy" || c.ProxyMode == "" {
		c.ProxyMode = "system"
	}
}

// Validate checks the configuration before any request is made.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if !c.DefaultColor.Valid() {
		return ErrInvalidDefaultTag
	}
	if c.RequestTimeoutSeconds < 1 || c.RequestTimeoutSeconds > 3600 {
		return ErrInvalidTimeout
	}
	mode := strings.ToLower(c.ProxyMode)
	if mode == "" {
		mode = "no-proxy"
	}
	if !validProxyModes[mode] {
		return fmt.Errorf("%w: got %q", ErrInvalidProxyMode, c.ProxyMode)
	}
	if (mode == "basic" || mode == "ntlm") && c.ProxyHost == "" {
		return ErrMissingProxyHost
	}
	return nil
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/browser"

	"github.com/firstbutton/docucal/internal/api"
	"github.com/firstbutton/docucal/internal/config"
	"github.com/firstbutton/docucal/internal/cookies"
	"github.com/firstbutton/docucal/internal/core"
	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/http"
	"github.com/firstbutton/docucal/internal/logging"
	"github.com/firstbutton/docucal/internal/notify"
	"github.com/firstbutton/docucal/internal/progress"
	"github.com/firstbutton/docucal/internal/session"
	"github.com/firstbutton/docucal/internal/upload"
)

// configPath returns the --config value or the default location.
func configPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file and applies environment and flags.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(baseURL, sessionFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// appOptions controls how commands build the page.
type appOptions struct {
	// noBrowser prints the sign-in URL without opening it
	noBrowser bool
	// progressOut receives progress bars when it is a terminal
	progressOut io.Writer
}

// app holds everything one command invocation needs.
type app struct {
	cfg    *config.Config
	jar    *cookies.Jar
	client *api.Client
	bus    *events.EventBus
	page   *core.Page
	logger *logging.Logger

	wg sync.WaitGroup
}

// newApp loads configuration and wires the page: cookie store, API client,
// event bus, notifications and progress reporting.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	log := GetLogger()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.LogFile != "" {
		if err := log.EnableFile(cfg.LogFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.LogFile).Msg("Could not open log file")
		}
	}

	if http.NeedsProxyPassword(cfg) {
		password, err := promptPassword(fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = password
	}

	jar, err := cookies.Open(cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	client, err := api.NewClient(cfg, jar, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	bus := events.NewEventBus(0)
	a := &app{
		cfg:    cfg,
		jar:    jar,
		client: client,
		bus:    bus,
		logger: log,
	}

	a.relayEvents(bus.Subscribe(events.EventLog, events.EventProgress))

	if cfg.NotificationsEnabled {
		notifier := notify.NewNotifier(&notify.Config{Enabled: true, ShowSuccess: true, ShowFailure: true}, log)
		completed := bus.Subscribe(events.EventUploadCompleted)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			notifier.Watch(ctx, completed)
		}()
	}

	var opener session.Opener
	if !opts.noBrowser {
		opener = browser.OpenURL
	}

	progressOut := opts.progressOut
	if progressOut == nil {
		progressOut = os.Stderr
	}

	a.page = core.NewPage(core.Options{
		Store:    jar,
		Base:     client.BaseURL(),
		Backend:  client,
		Open:     opener,
		EventBus: bus,
		Logger:   log,
		Upload: upload.Options{
			PruneSucceeded: cfg.PruneSucceeded,
			Progress:       progress.NewTerminalFactory(progressOut, bus),
		},
	})
	return a, nil
}

// relayEvents writes bus log messages to the CLI logger. Byte progress only
// reaches the bus when no terminal is attached, and is logged at debug level.
func (a *app) relayEvents(ch <-chan events.Event) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for ev := range ch {
			switch e := ev.(type) {
			case *events.LogEvent:
				switch e.Level {
				case events.ErrorLevel:
					a.logger.Error().Err(e.Error).Msg(e.Message)
				case events.WarnLevel:
					a.logger.Warn().Err(e.Error).Msg(e.Message)
				case events.DebugLevel:
					a.logger.Debug().Msg(e.Message)
				default:
					a.logger.Info().Msg(e.Message)
				}
			case *events.ProgressEvent:
				a.logger.Debug().
					Str("file", e.Name).
					Int64("bytes", e.BytesCurrent).
					Int64("total", e.BytesTotal).
					Msg("Upload progress")
			}
		}
	}()
}

// Close flushes pending events and notifications.
func (a *app) Close() {
	a.bus.Close()
	a.wg.Wait()
	if dropped := a.bus.GetDroppedEventCount(); dropped > 0 {
		a.logger.Debug().Int64("dropped", dropped).Msg("Event bus dropped events")
	}
	_ = a.logger.Close()
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firstbutton/docucal/internal/api"
	"github.com/firstbutton/docucal/internal/config"
	"github.com/firstbutton/docucal/internal/constants"
	"github.com/firstbutton/docucal/internal/cookies"
	"github.com/firstbutton/docucal/internal/http"
	"github.com/firstbutton/docucal/internal/models"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage docucal configuration",
		Long: `Configuration management commands for docucal.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the backend connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for docucal.

The configuration is saved to ~/.config/docucal/config (INI format).

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := runConfigInit(stdinReader, out)
			if err != nil {
				return err
			}

			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Test your configuration with: docucal config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// runConfigInit asks for each setting, offering the defaults.
func runConfigInit(r *bufio.Reader, w io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()

	fmt.Fprintln(w, "docucal Configuration Setup")
	fmt.Fprintln(w, "===========================")
	fmt.Fprintln(w)

	input, err := promptDefault(r, w, "Backend URL", cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimSuffix(input, "/")

	for {
		input, err = promptDefault(r, w, "Default calendar colour (1-11 or name)", cfg.DefaultColor.WireValue())
		if err != nil {
			return nil, err
		}
		tag, err := models.ParseTag(input)
		if err == nil {
			cfg.DefaultColor = tag
			break
		}
		fmt.Fprintf(w, "  Error: %v\n", err)
	}

	input, err = promptDefault(r, w, "Request timeout in seconds", strconv.Itoa(cfg.RequestTimeoutSeconds))
	if err != nil {
		return nil, err
	}
	if v, err := strconv.Atoi(input); err == nil && v > 0 {
		cfg.RequestTimeoutSeconds = v
	}

	if cfg.PruneSucceeded, err = promptYesNo(r, w, "Unstage already-uploaded files when a batch fails?"); err != nil {
		return nil, err
	}
	if cfg.NotificationsEnabled, err = promptYesNo(r, w, "Show desktop notifications?"); err != nil {
		return nil, err
	}

	fmt.Fprintln(w)
	configureProxy, err := promptYesNo(r, w, "Configure proxy?")
	if err != nil {
		return nil, err
	}
	if configureProxy {
		fmt.Fprintln(w, "Proxy modes: no-proxy, system, basic, ntlm")
		if cfg.ProxyMode, err = promptDefault(r, w, "Proxy mode", "system"); err != nil {
			return nil, err
		}
		if cfg.ProxyMode != "no-proxy" {
			if cfg.ProxyHost, err = promptLine(r, w, "Proxy host: "); err != nil {
				return nil, err
			}
			input, err = promptDefault(r, w, "Proxy port", "8080")
			if err != nil {
				return nil, err
			}
			if v, err := strconv.Atoi(input); err == nil && v > 0 {
				cfg.ProxyPort = v
			}
			if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
				if cfg.ProxyUser, err = promptLine(r, w, "Proxy user: "); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/docucal/config)
  2. Environment variables (DOCUCAL_BASE_URL, DOCUCAL_SESSION_FILE, HTTPS_PROXY)
  3. Command-line flags (--base-url, --session-file)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlags(baseURL, sessionFile)

			printConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Backend:")
	fmt.Fprintf(w, "  Base URL:     %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "  Session file: %s\n", cfg.SessionFile)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Upload:")
	fmt.Fprintf(w, "  Default colour:  %s\n", cfg.DefaultColor)
	fmt.Fprintf(w, "  Prune succeeded: %t\n", cfg.PruneSucceeded)
	fmt.Fprintf(w, "  Request timeout: %s\n", cfg.RequestTimeout())
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy Settings:")
	fmt.Fprintf(w, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(w, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(w, "  Proxy User: %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(w, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Notifications: %t\n", cfg.NotificationsEnabled)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "Log file:      %s\n", cfg.LogFile)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the backend connection",
		Long: `Test the backend connection with the current configuration.

Fetches the sign-in URL, which needs no session, to verify the base URL and
proxy settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if http.NeedsProxyPassword(cfg) {
				if cfg.ProxyPassword, err = promptPassword("Proxy password: "); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "Backend URL: %s\n", cfg.BaseURL)
			fmt.Fprintln(out, "Testing connection...")

			jar, err := cookies.Open("")
			if err != nil {
				return err
			}
			client, err := api.NewClient(cfg, jar, log)
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}

			ctx, cancel := context.WithTimeout(GetContext(), constants.LoginURLTimeout)
			defer cancel()

			if _, err := client.LoginURL(ctx); err != nil {
				log.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			log.Info().Msg("Connection test successful")
			fmt.Fprintln(out, "Connection SUCCESSFUL")
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: docucal config init")
			}
			return nil
		},
	}
}

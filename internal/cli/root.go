// Package cli provides the command-line interface for wikidesk.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/auth"
	"github.com/raphaelgruber/wikidesk/internal/client"
	"github.com/raphaelgruber/wikidesk/internal/config"
	"github.com/raphaelgruber/wikidesk/internal/metrics"
	"github.com/raphaelgruber/wikidesk/internal/wiki"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	jsonOut   bool
	ephemeral bool
	showStats bool

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	requests *metrics.Collector

	// Shared by both backend clients: one token, one logout.
	store auth.Store
	creds *auth.Credentials

	wikiAPI *wiki.API
	aiAPI   *ai.API

	// quietExpiry suppresses the expiry notice while logging in.
	quietExpiry bool
	// expiryNotice limits the notice to once per process; login resets it.
	expiryNotice sync.Once
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "wikidesk",
	Short: "Terminal client for the company wiki and CRM",
	Long: `wikidesk is a terminal client for the company wiki: wiki pages, customers,
engineer staffing, incidents, opportunities and the AI assistant.

Log in once with 'wikidesk login'; the session is kept until it expires or
you run 'wikidesk logout'.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		if ephemeral {
			store = auth.NewMemoryStore()
		} else {
			store = auth.NewFileStore(cfg.StateFile)
		}
		creds = auth.NewCredentials(store)
		requests = metrics.NewCollector()

		wikiAPI = wiki.New(newClient("api", cfg.APIURL))
		aiAPI = ai.New(newClient("ai", cfg.AIURL))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && requests != nil {
			printRequestStats(requests.Snapshot())
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// newClient builds one backend client. Both share creds and the same
// session-expiry handler.
func newClient(name, baseURL string) *client.Client {
	return client.New(client.Options{
		Name:           name,
		BaseURL:        baseURL,
		Credentials:    creds,
		OnUnauthorized: sessionExpired,
		Timeout:        cfg.HTTPTimeout,
		Logger:         logger,
		Metrics:        requests,
	})
}

// sessionExpired is the CLI's "redirect to login".
func sessionExpired() {
	if quietExpiry {
		return
	}
	expiryNotice.Do(func() {
		fmt.Fprintln(os.Stderr, defaultTheme.errorStyle().Render("Your session has expired."))
		fmt.Fprintln(os.Stderr, defaultTheme.hintStyle().Render("Run 'wikidesk login' to sign in again."))
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON instead of tables")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the session in memory only")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request statistics when done")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(customersCmd())
	rootCmd.AddCommand(engineersCmd())
	rootCmd.AddCommand(incidentsCmd())
	rootCmd.AddCommand(opportunitiesCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(departmentsCmd())
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// fail turns err into the one-line message shown to the user.
func fail(err error, fallback string) error {
	if err == nil {
		return nil
	}
	logger.Debug("command failed", "error", err)
	return fmt.Errorf("%s", client.Message(err, fallback))
}

// confirm asks a yes/no question on stdin. Anything but y/yes is a no.
func confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read input: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// printRequestStats writes per-backend request statistics to stderr.
func printRequestStats(snap metrics.Snapshot) {
	fmt.Fprintf(os.Stderr, "\nRequests (%.1fs)\n", snap.ElapsedSeconds)
	if len(snap.Backends) == 0 {
		fmt.Fprintln(os.Stderr, "  none")
		return
	}
	for _, b := range snap.Backends {
		fmt.Fprintf(os.Stderr, "  %-4s %3d requests  %d failed  avg %.0fms  min %dms  max %dms\n",
			b.Backend, b.Requests, b.Failures, b.AvgTimeMs, b.MinTimeMs, b.MaxTimeMs)
	}
}

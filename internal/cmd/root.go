// Package cmd provides the command-line interface for yanderelinks.
// It handles command parsing, configuration loading, and extraction runs.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/yanderelinks/internal/config"
	"github.com/masahif/yanderelinks/internal/crawler"
	"github.com/masahif/yanderelinks/internal/extract"
	"github.com/masahif/yanderelinks/internal/fetch"
	"github.com/masahif/yanderelinks/internal/logging"
	"github.com/masahif/yanderelinks/internal/output"
	"github.com/masahif/yanderelinks/internal/page"
	"github.com/masahif/yanderelinks/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yanderelinks [page links...]",
	Short: "Extract image links from yande.re listing and pool pages",
	Long: `yanderelinks collects the full-size image links of yande.re pages.

Each argument is a listing page, a pool index or a pool page. With
--enumerate the following pages of the same series are extracted as well.
Links are printed to stdout one per line; logs go to stderr.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runExtract,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./yanderelinks.yml)")
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	rootCmd.Flags().IntP("enumerate", "e", defaults.Enumerate, "Pages to extract from each link (0=that page only, -1=to the last page)")
	rootCmd.Flags().IntP("concurrency", "c", defaults.Concurrency, "Number of pages extracted in parallel")
	rootCmd.Flags().DurationP("delay", "r", defaults.RequestDelay, "Minimum delay between requests to the site")
	rootCmd.Flags().DurationP("timeout", "t", defaults.RequestTimeout, "HTTP request timeout")
	rootCmd.Flags().StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	rootCmd.Flags().Bool("respect-robots", defaults.RespectRobots, "Honor robots.txt rules")
	rootCmd.Flags().Duration("poll-interval", defaults.PollInterval, "How often to check whether extraction has finished")

	rootCmd.Flags().StringP("output", "o", "", "Append links to this file")
	rootCmd.Flags().StringP("database", "d", "", "Export links to this SQLite database")
	rootCmd.Flags().BoolP("quiet", "q", false, "Do not print links to stdout")

	rootCmd.Flags().String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
	rootCmd.Flags().String("log-file", "", "Also write JSON logs to this file")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"enumerate", "enumerate"},
		{"concurrency", "concurrency"},
		{"request_delay", "delay"},
		{"request_timeout", "timeout"},
		{"user_agent", "user-agent"},
		{"respect_robots", "respect-robots"},
		{"poll_interval", "poll-interval"},
		{"output", "output"},
		{"database_path", "database"},
		{"quiet", "quiet"},
		{"log_level", "log-level"},
		{"log_file", "log-file"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("yanderelinks")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("YL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("yanderelinks/%s", version)
	}
	return "yanderelinks/dev"
}

// loadConfig merges defaults, the config file, environment and flags, then
// completes the page links. Command-line links replace configured ones.
func loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.PageLinks = args
	}
	cfg.PageLinks = config.FormatPageLinks(cfg.PageLinks)

	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == config.DefaultConfig().UserAgent {
		cfg.UserAgent = generateUserAgent()
	}
	return cfg, nil
}

func showCurrentConfig(w io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current yanderelinks Configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./yanderelinks.yml\n")
	fmt.Fprintf(w, "# Environment variables prefix: YL_\n\n")

	fmt.Fprint(w, string(yamlData))

	fmt.Fprintf(w, "\n# Configuration source priority:\n")
	fmt.Fprintf(w, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(w, "# 2. Environment variables (YL_ prefix)\n")
	fmt.Fprintf(w, "# 3. Configuration file (yanderelinks.yml)\n")
	fmt.Fprintf(w, "# 4. Default values (lowest priority)\n")

	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCloser, err := logging.SetDefault(logging.Config{
		Level:      logging.ParseLevel(cfg.LogLevel),
		FilePath:   cfg.LogFile,
		MaxSize:    logging.DefaultConfig().MaxSize,
		MaxBackups: logging.DefaultConfig().MaxBackups,
		Console:    true,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	client := fetch.NewHTTPClient(fetch.Options{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.RequestTimeout,
		RequestDelay:  cfg.RequestDelay,
		RespectRobots: cfg.RespectRobots,
	})
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = run(ctx, cfg, client, cmd.OutOrStdout())
	return err
}

// run extracts every configured page link and waits for the work to drain.
// Canceling ctx requests cancellation: no further pages are dispatched and
// pending fetches are aborted, but run still waits for running tasks and
// records the outcome.
func run(ctx context.Context, cfg *config.CrawlConfig, fetcher fetch.Fetcher, stdout io.Writer) (crawler.CrawlStats, error) {
	runID := uuid.NewString()
	logger := slog.With("run_id", runID)

	sinks, closeSinks, err := openSinks(cfg, runID, stdout)
	if err != nil {
		return crawler.CrawlStats{}, err
	}
	defer closeSinks()

	base := context.WithoutCancel(ctx)
	orch := crawler.New(base, crawler.Config{
		RunID:         runID,
		Concurrency:   cfg.Concurrency,
		PollInterval:  cfg.PollInterval,
		StatsInterval: 10 * time.Second,
	}, fetcher, extract.NewEngine(sinks.sink))

	stopWatch := context.AfterFunc(ctx, orch.RequestCancellation)
	defer stopWatch()

	logger.Info("Starting extraction", "page_links", cfg.PageLinks, "enumerate", cfg.Enumerate,
		"concurrency", cfg.Concurrency)

	var dispatchErr *multierror.Error
	var pages []*page.Page
	for _, link := range cfg.PageLinks {
		p, err := orch.NewPage(link)
		if err != nil {
			dispatchErr = multierror.Append(dispatchErr, fmt.Errorf("%s: %w", link, err))
			continue
		}
		pages = append(pages, p)

		if cfg.Enumerate == 0 {
			err = orch.ExtractSinglePage(p)
		} else {
			err = orch.EnumeratePages(p, cfg.Enumerate)
		}
		if errors.Is(err, crawler.ErrCanceled) {
			break
		}
		if err != nil {
			dispatchErr = multierror.Append(dispatchErr, fmt.Errorf("%s: %w", link, err))
		}
	}

	if err := orch.AwaitCompletion(base); err != nil {
		dispatchErr = multierror.Append(dispatchErr, err)
	}
	for _, p := range pages {
		_ = p.Close()
	}

	stats := orch.GetStats()
	if sinks.store != nil {
		if err := sinks.store.FinishRun(runID, runState(orch.State()), orch.Results().Len()); err != nil {
			dispatchErr = multierror.Append(dispatchErr, err)
		}
	}

	logger.Info("Extraction summary", "state", orch.State(), "links", orch.Results().Len(),
		"pages", stats.PagesProcessed, "fetch_errors", stats.FetchErrors, "duration", stats.Duration)
	return stats, dispatchErr.ErrorOrNil()
}

// runState maps the crawl state onto the states a stored run can end in.
// A run that dispatched nothing finished with nothing to do.
func runState(state crawler.State) string {
	if state == crawler.StateIdle {
		return crawler.StateCompleted.String()
	}
	return state.String()
}

// runSinks are the destinations links are written to.
type runSinks struct {
	sink  extract.Sink
	store *storage.SQLiteStorage // nil without a database
}

// openSinks opens the configured outputs: stdout unless quiet, the output
// file and the SQLite export. The returned func closes all of them.
func openSinks(cfg *config.CrawlConfig, runID string, stdout io.Writer) (runSinks, func(), error) {
	var multi extract.MultiSink
	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	if !cfg.Quiet {
		multi = append(multi, output.NewConsole(stdout))
	}

	if cfg.OutputPath != "" {
		file, err := output.OpenFile(cfg.OutputPath)
		if err != nil {
			return runSinks{}, nil, fmt.Errorf("failed to open output file: %w", err)
		}
		closers = append(closers, file)
		multi = append(multi, file)
	}

	var store *storage.SQLiteStorage
	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0750); err != nil {
			closeAll()
			return runSinks{}, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		var err error
		store, err = storage.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			closeAll()
			return runSinks{}, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		closers = append(closers, store)
		if err := store.BeginRun(runID, cfg.PageLinks, cfg.Enumerate); err != nil {
			closeAll()
			return runSinks{}, nil, err
		}
		multi = append(multi, store.Sink(runID))
	}

	return runSinks{sink: multi, store: store}, closeAll, nil
}

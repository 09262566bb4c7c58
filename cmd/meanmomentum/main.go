package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/raykavin/meanmomentum"
	"github.com/raykavin/meanmomentum/pkg/config"
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/feed"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/logger/zerolog"
	"github.com/raykavin/meanmomentum/pkg/optimizer"
	"github.com/raykavin/meanmomentum/pkg/storage"
	"github.com/raykavin/meanmomentum/pkg/store"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	configPath string

	// backtest
	tradesFile   string
	equityFile   string
	showProgress bool

	// optimize
	method      string
	iterations  int
	parallelism int
	metricName  string
	minimize    bool
	topN        int
	seed        int64
	resultsFile string

	// download
	symbols   []string
	startDate string
	endDate   string
	span      string
	aliases   map[string]string

	// paper
	sessionDate string

	// config init
	force bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "meanmomentum",
		Short:         "Backtest and paper trade the mean-momentum equity strategy",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default "+config.DefaultConfigPath+" when present)")

	rootCmd.AddCommand(
		buildBacktestCmd(),
		buildOptimizeCmd(),
		buildDownloadCmd(),
		buildPaperCmd(),
		buildConfigCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest over the configured window and print the summary",
		RunE:  runBacktest,
	}
	cmd.Flags().StringVar(&tradesFile, "trades", "", "Write the trade log to this CSV file")
	cmd.Flags().StringVar(&equityFile, "equity", "", "Write the equity curve to this CSV file")
	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show a progress bar")
	return cmd
}

func buildOptimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search trailing stop and commission for the best run",
		RunE:  runOptimize,
	}
	cmd.Flags().StringVar(&method, "method", "grid", "Search method: grid or random")
	cmd.Flags().IntVar(&iterations, "iterations", 100, "Maximum number of runs")
	cmd.Flags().IntVarP(&parallelism, "parallel", "p", 4, "Runs evaluated concurrently")
	cmd.Flags().StringVarP(&metricName, "metric", "m", string(optimizer.MetricSharpeRatio), "Metric to rank by")
	cmd.Flags().BoolVar(&minimize, "minimize", false, "Rank ascending instead of descending")
	cmd.Flags().IntVar(&topN, "top", 5, "Number of results to print")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random search seed")
	cmd.Flags().StringVarP(&resultsFile, "output", "o", "", "Write every result to this CSV file")
	return cmd
}

func buildDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download daily bars from Alpaca into the data directory",
		RunE:  runDownload,
	}
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols to download (default: every configured symbol)")
	cmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	cmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2023-12-31)")
	cmd.Flags().StringVar(&span, "span", "", "Span ending today instead of start/end (e.g. 730d)")
	cmd.Flags().StringToStringVar(&aliases, "alias", map[string]string{"^NDX": "QQQ", "^GSPC": "SPY"},
		"Tickers requested in place of symbols Alpaca does not carry")
	return cmd
}

func buildPaperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Scan once against a paper account using the latest stored bars as quotes",
		RunE:  runPaper,
	}
	cmd.Flags().StringVar(&sessionDate, "date", "", "Session date (default: last regime bar)")
	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// setup loads the configuration and builds the logger it describes
func setup() (config.Config, core.Settings, logger.Logger, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, core.Settings{}, nil, err
	}

	settings, err := cfg.Settings()
	if err != nil {
		return config.Config{}, core.Settings{}, nil, err
	}

	log, err := zerolog.New(zerolog.Options{
		Level:      cfg.Log.Level,
		TimeLayout: "2006-01-02 15:04:05",
		Colored:    !cfg.Log.JSON,
		JSON:       cfg.Log.JSON,
	})
	if err != nil {
		return config.Config{}, core.Settings{}, nil, err
	}
	return cfg, settings, zerolog.NewAdapter(log), nil
}

func files(cfg config.Config) (feed.Files, error) {
	format, err := feed.ParseFormat(cfg.Data.Format)
	if err != nil {
		return feed.Files{}, err
	}
	return feed.NewFiles(cfg.Data.Dir, format), nil
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, settings, log, err := setup()
	if err != nil {
		return err
	}

	provider, err := files(cfg)
	if err != nil {
		return err
	}
	warmup, err := cfg.WarmupDuration()
	if err != nil {
		return err
	}

	run := storage.NewRunID()
	journal, err := storage.Open(cfg.Journal.Kind, cfg.Journal.Path, run)
	if err != nil {
		return err
	}

	options := []meanmomentum.Option{
		meanmomentum.WithProvider(provider),
		meanmomentum.WithLogger(log),
		meanmomentum.WithWarmup(warmup),
		meanmomentum.WithRunID(run),
	}
	if journal != nil {
		defer journal.Close()
		options = append(options, meanmomentum.WithJournal(journal))
	}
	if showProgress {
		options = append(options, meanmomentum.WithProgressBar())
	}

	backtester, err := meanmomentum.New(settings, options...)
	if err != nil {
		return err
	}

	if _, err := backtester.Run(cmd.Context()); err != nil {
		return err
	}

	if err := backtester.Summary(cmd.OutOrStdout()); err != nil {
		return err
	}

	if tradesFile != "" {
		if err := backtester.SaveTrades(tradesFile); err != nil {
			return err
		}
		log.Infof("Trade log written to %s", tradesFile)
	}
	if equityFile != "" {
		if err := backtester.SaveEquity(equityFile); err != nil {
			return err
		}
		log.Infof("Equity curve written to %s", equityFile)
	}
	return nil
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	cfg, settings, log, err := setup()
	if err != nil {
		return err
	}

	st, err := loadStore(cmd, cfg, settings, log)
	if err != nil {
		return err
	}

	optConfig := optimizer.NewConfig().
		WithParameters(optimizer.DefaultParameters()...).
		WithMaxIterations(iterations).
		WithParallelism(parallelism).
		WithTargetMetric(optimizer.MetricName(metricName), !minimize).
		WithTopN(topN).
		WithSeed(seed).
		WithLogger(log)

	var search optimizer.Optimizer
	switch strings.ToLower(method) {
	case "grid":
		search, err = optimizer.NewGridSearch(optConfig)
	case "random":
		search, err = optimizer.NewRandomSearch(optConfig)
	default:
		err = fmt.Errorf("unknown search method %q", method)
	}
	if err != nil {
		return err
	}

	results, err := search.Optimize(cmd.Context(), optimizer.NewSimulationEvaluator(settings, st),
		optConfig.TargetMetric, optConfig.Maximize)
	if err != nil {
		return err
	}

	optimizer.PrintResults(cmd.OutOrStdout(), results, optConfig.TargetMetric, optConfig.TopN)
	if resultsFile != "" {
		if err := optimizer.SaveResultsToCSV(results, resultsFile); err != nil {
			return err
		}
		log.Infof("Results written to %s", resultsFile)
	}
	return nil
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, settings, log, err := setup()
	if err != nil {
		return err
	}

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return errors.New("alpaca credentials missing: set alpaca.api_key and alpaca.api_secret " +
			"or MEANMOMENTUM_ALPACA_API_KEY and MEANMOMENTUM_ALPACA_API_SECRET")
	}

	target, err := files(cfg)
	if err != nil {
		return err
	}

	alpacaOptions := []feed.AlpacaOption{}
	if cfg.Alpaca.Feed != "" {
		alpacaOptions = append(alpacaOptions, feed.WithFeed(marketdata.Feed(cfg.Alpaca.Feed)))
	}
	for symbol, ticker := range aliases {
		alpacaOptions = append(alpacaOptions, feed.WithAlias(symbol, ticker))
	}
	source := feed.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, alpacaOptions...)

	options, err := buildDownloadOptions(cfg)
	if err != nil {
		return err
	}

	if len(symbols) == 0 {
		symbols = settings.Symbols()
	}

	failed, err := feed.NewDownloader(source, target, log).Download(cmd.Context(), symbols, options...)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s\n", strings.Join(failed, ", "))
	}
	return nil
}

func buildDownloadOptions(cfg config.Config) ([]feed.Option, error) {
	if span != "" {
		option, err := feed.WithSpan(span)
		if err != nil {
			return nil, fmt.Errorf("invalid span %q: %w", span, err)
		}
		return []feed.Option{option}, nil
	}

	if startDate == "" && endDate == "" {
		start, end, err := cfg.LoadWindow()
		if err != nil {
			return nil, err
		}
		if start.IsZero() || end.IsZero() {
			return nil, nil
		}
		return []feed.Option{feed.WithInterval(start, end)}, nil
	}

	if startDate == "" || endDate == "" {
		return nil, errors.New("START and END dates must be provided together")
	}

	start, err := time.Parse(core.DateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date format: %w", err)
	}
	end, err := time.Parse(core.DateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date format: %w", err)
	}
	return []feed.Option{feed.WithInterval(start, end)}, nil
}

func runPaper(cmd *cobra.Command, _ []string) error {
	cfg, settings, log, err := setup()
	if err != nil {
		return err
	}

	st, err := loadStore(cmd, cfg, settings, log)
	if err != nil {
		return err
	}

	today, err := paperDate(st, settings)
	if err != nil {
		return err
	}

	journal, err := storage.Open(cfg.Journal.Kind, cfg.Journal.Path, storage.NewRunID())
	if err != nil {
		return err
	}

	options := []meanmomentum.SessionOption{meanmomentum.WithSessionLogger(log)}
	if journal != nil {
		defer journal.Close()
		options = append(options, meanmomentum.WithSessionJournal(journal))
	}

	session, err := meanmomentum.NewPaperSession(settings, st, options...)
	if err != nil {
		return err
	}

	state, err := session.Run(cmd.Context(), today)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Session:   %s\n", state.Date.Format(core.DateLayout))
	fmt.Fprintf(out, "Cash:      %.2f\n", state.Cash)
	fmt.Fprintf(out, "Equity:    %.2f\n", state.Equity)
	for _, position := range state.Positions {
		fmt.Fprintf(out, "Position:  %s %d @ %.2f stop %.2f (%s)\n",
			position.Symbol, position.Quantity, position.EntryPrice, position.StopPrice, position.Strategy)
	}
	for _, trade := range state.Trades {
		fmt.Fprintf(out, "Closed:    %s\n", trade)
	}
	if len(state.Pending) > 0 {
		fmt.Fprintf(out, "Pending:   %s\n", strings.Join(state.Pending, ", "))
	}
	fmt.Fprintln(out, strings.Repeat("=", 50))
	return nil
}

// paperDate is the --date flag or the last bar of the regime index
func paperDate(st *store.PriceSeriesStore, settings core.Settings) (time.Time, error) {
	if sessionDate != "" {
		return time.Parse(core.DateLayout, sessionDate)
	}
	dates, err := st.Dates(settings.RegimeSymbol, time.Time{}, time.Time{})
	if err != nil {
		return time.Time{}, err
	}
	return dates[len(dates)-1], nil
}

// loadStore reads every configured series from the data directory
func loadStore(cmd *cobra.Command, cfg config.Config, settings core.Settings, log logger.Logger) (*store.PriceSeriesStore, error) {
	provider, err := files(cfg)
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.LoadWindow()
	if err != nil {
		return nil, err
	}

	st := store.New()
	if _, err := feed.NewLoader(provider, log).Load(cmd.Context(), st, settings.Symbols(), start, end); err != nil {
		return nil, err
	}
	return st, nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultConfigPath
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filepath.Clean(path))
	return nil
}

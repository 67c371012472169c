package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/freakspace/polymarket-latency/internal/calibration"
	"github.com/freakspace/polymarket-latency/internal/config"
	"github.com/freakspace/polymarket-latency/internal/events"
	"github.com/freakspace/polymarket-latency/internal/gamma"
	"github.com/freakspace/polymarket-latency/internal/health"
	"github.com/freakspace/polymarket-latency/internal/ingest"
	"github.com/freakspace/polymarket-latency/internal/logging"
	"github.com/freakspace/polymarket-latency/internal/metrics"
	"github.com/freakspace/polymarket-latency/internal/report"
	"github.com/freakspace/polymarket-latency/internal/stream"
	"github.com/freakspace/polymarket-latency/pkg/types"
)

const defaultConfigFile = "polylatency.yaml"

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	env := cliEnv{out: os.Stdout, logger: logging.New()}
	cmd := os.Args[1]
	var err error

	switch cmd {
	case "market":
		err = runMarket(ctx, os.Args[2:], env)
	case "user":
		err = runUser(ctx, os.Args[2:], env)
	case "init-config":
		err = initConfig(os.Args[2:], env)
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return
	default:
		if strings.HasPrefix(cmd, "-") {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
			printUsage(os.Stderr)
			os.Exit(1)
		}
		// A bare slug is shorthand for the market command.
		cmd = "market"
		err = runMarket(ctx, os.Args[1:], env)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

type cliEnv struct {
	out    io.Writer
	logger *log.Logger
}

type commonOptions struct {
	configPath  string
	verbose     bool
	metricsAddr string
	noColor     bool
}

func (o *commonOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to configuration file (default $POLYLATENCY_CONFIG)")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Show detailed output")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address")
	fs.BoolVar(&o.noColor, "no-color", false, "Disable coloured report output")
}

func (o commonOptions) loadConfig(ctx context.Context, fs *flag.FlagSet) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(ctx, o.configPath)
	} else {
		cfg, err = config.LoadFromEnv(ctx)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if fs.Changed("metrics-addr") {
		cfg.Monitoring.MetricsAddr = o.metricsAddr
	}
	return cfg, nil
}

type marketOptions struct {
	commonOptions
	slug              string
	numEvents         int
	calibrationEvents int
	hasNumEvents      bool
	hasCalibration    bool
	adjustedAnomalies bool
}

func parseMarketArgs(args []string) (marketOptions, *flag.FlagSet, error) {
	var opts marketOptions
	fs := flag.NewFlagSet("market", flag.ContinueOnError)
	opts.register(fs)
	fs.BoolVar(&opts.adjustedAnomalies, "adjusted-anomalies", false, "Also run the anomaly checks over adjusted latencies")
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}

	positional := fs.Args()
	if len(positional) == 0 {
		return opts, fs, fmt.Errorf("market slug is required")
	}
	if len(positional) > 3 {
		return opts, fs, fmt.Errorf("unexpected arguments: %s", strings.Join(positional[3:], " "))
	}
	opts.slug = positional[0]
	if len(positional) > 1 {
		n, err := strconv.Atoi(positional[1])
		if err != nil || n < 1 {
			return opts, fs, fmt.Errorf("num_events must be a positive integer, got %q", positional[1])
		}
		opts.numEvents, opts.hasNumEvents = n, true
	}
	if len(positional) > 2 {
		k, err := strconv.Atoi(positional[2])
		if err != nil || k < 0 {
			return opts, fs, fmt.Errorf("calibration_events must be a non-negative integer, got %q", positional[2])
		}
		opts.calibrationEvents, opts.hasCalibration = k, true
	}
	return opts, fs, nil
}

type userOptions struct {
	commonOptions
	markets   []string
	maxEvents int
	auth      types.Auth
}

func parseUserArgs(args []string) (userOptions, *flag.FlagSet, error) {
	var opts userOptions
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	opts.register(fs)
	fs.StringSliceVar(&opts.markets, "markets", nil, "Comma-separated condition ids to filter")
	fs.IntVar(&opts.maxEvents, "max-events", 0, "Stop after this many timestamped events (0 runs until interrupted)")
	fs.StringVar(&opts.auth.APIKey, "api-key", "", "API key (default $"+config.EnvAPIKey+")")
	fs.StringVar(&opts.auth.Secret, "api-secret", "", "API secret (default $"+config.EnvAPISecret+")")
	fs.StringVar(&opts.auth.Passphrase, "api-passphrase", "", "API passphrase (default $"+config.EnvAPIPassphrase+")")
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if fs.NArg() > 0 {
		return opts, fs, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.maxEvents < 0 {
		return opts, fs, fmt.Errorf("max-events must not be negative")
	}
	markets := opts.markets[:0]
	for _, m := range opts.markets {
		if m = strings.TrimSpace(m); m != "" {
			markets = append(markets, m)
		}
	}
	opts.markets = markets
	return opts, fs, nil
}

func runMarket(ctx context.Context, args []string, env cliEnv) error {
	opts, fs, err := parseMarketArgs(args)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig(ctx, fs)
	if err != nil {
		return err
	}
	numEvents := cfg.Run.NumEvents
	if opts.hasNumEvents {
		numEvents = opts.numEvents
	}
	window := cfg.Run.CalibrationEvents
	if opts.hasCalibration {
		window = opts.calibrationEvents
	}
	if clamped := calibration.ClampWindow(window, numEvents); clamped != window {
		env.logger.Printf("calibration window %d exceeds half of %d events; using %d", window, numEvents, clamped)
		window = clamped
	}

	gammaClient, err := gamma.NewClient(
		gamma.Config{BaseURL: cfg.Endpoints.GammaAPIURL},
		gamma.Dependencies{
			HTTPClient: &http.Client{Timeout: cfg.Endpoints.HTTPTimeout},
			Logger:     env.logger,
		},
	)
	if err != nil {
		return fmt.Errorf("init gamma client: %w", err)
	}
	resolved, err := gammaClient.ResolveMarket(ctx, opts.slug)
	if err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}

	runCfg := ingest.RunConfig{
		Mode:              ingest.ModeMarket,
		AssetIDs:          resolved.TokenIDs,
		NumEvents:         numEvents,
		CalibrationEvents: window,
		Verbose:           opts.verbose,
	}
	s := newSession(cfg, env, opts.commonOptions)
	env.logger.Printf("collecting %d events (run %s)", numEvents, s.runID)
	state, err := s.execute(ctx, runCfg, types.ChannelMarket, nil)
	if err != nil {
		return err
	}

	return report.Market(env.out, report.FromState(s.runID, state), report.Options{
		NoColor:           opts.noColor,
		AdjustedAnomalies: opts.adjustedAnomalies,
	})
}

func runUser(ctx context.Context, args []string, env cliEnv) error {
	opts, fs, err := parseUserArgs(args)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig(ctx, fs)
	if err != nil {
		return err
	}

	auth := config.ResolveCredentials(opts.auth)
	if missing := config.MissingCredentials(auth); len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ingest.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	runCfg := ingest.RunConfig{
		Mode:      ingest.ModeUser,
		Markets:   opts.markets,
		Auth:      auth,
		NumEvents: opts.maxEvents,
		Verbose:   opts.verbose,
	}
	tally := events.NewTally(env.logger, opts.verbose)
	s := newSession(cfg, env, opts.commonOptions)
	env.logger.Printf("listening for user events (run %s); press Ctrl+C to stop", s.runID)
	state, err := s.execute(ctx, runCfg, types.ChannelUser, tally)
	if err != nil {
		return err
	}

	return report.User(env.out, report.FromState(s.runID, state), tally.Counts(), report.Options{NoColor: opts.noColor})
}

func initConfig(args []string, env cliEnv) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := defaultConfigFile
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := config.Write(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "wrote default configuration to %s\n", path)
	return nil
}

// session carries the per-run collaborators shared by both channels.
type session struct {
	cfg     config.Config
	env     cliEnv
	runID   string
	store   *metrics.Store
	checker *health.Checker
}

func newSession(cfg config.Config, env cliEnv, opts commonOptions) *session {
	store := metrics.NewStore()
	runID := uuid.NewString()
	store.SetRunID(runID)
	return &session{
		cfg:     cfg,
		env:     env,
		runID:   runID,
		store:   store,
		checker: health.NewChecker(store, 3*cfg.Run.KeepaliveInterval),
	}
}

// execute connects, runs the loop to completion and serves monitoring
// alongside it when configured. An interrupt ends the loop early without
// an error so the caller can still report partial data.
func (s *session) execute(ctx context.Context, runCfg ingest.RunConfig, channel string, handler events.Handler) (*ingest.RunState, error) {
	logger := s.env.logger
	observed := events.HandlerFunc(func(map[string]any, *float64) {
		s.checker.ObserveEvent(time.Now().UTC())
	})
	loop, err := ingest.New(runCfg, ingest.Dependencies{
		Logger:            logger,
		Metrics:           s.store,
		Handler:           events.NewMulti(handler, observed),
		KeepaliveInterval: s.cfg.Run.KeepaliveInterval,
	})
	if err != nil {
		return nil, err
	}

	// Bind before connecting so a bad address fails the run up front
	// instead of cancelling an ingestion that already started.
	var monitorLn net.Listener
	if addr := s.cfg.Monitoring.MetricsAddr; addr != "" {
		monitorLn, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listen for monitoring on %s: %w", addr, err)
		}
		defer monitorLn.Close()
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := stream.ChannelURL(s.cfg.Endpoints.WSBaseURL, channel)
	logger.Printf("connecting to %s", url)
	conn, err := stream.Dial(runCtx, url, stream.Options{
		HandshakeTimeout: s.cfg.Run.HandshakeTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}

	grp, groupCtx := errgroup.WithContext(runCtx)
	monitorCtx, stopMonitoring := context.WithCancel(groupCtx)
	defer stopMonitoring()

	var state *ingest.RunState
	grp.Go(func() error {
		defer stopMonitoring()
		st, err := loop.Run(groupCtx, conn)
		state = st
		return err
	})
	if monitorLn != nil {
		grp.Go(func() error {
			if err := serveMonitoring(monitorCtx, monitorLn, s.store, s.checker, logger); err != nil {
				logger.Printf("monitoring server stopped: %v", err)
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return state, err
	}
	if state == nil {
		return nil, fmt.Errorf("ingestion did not produce a result")
	}
	if state.Err != nil {
		logger.Printf("run ended after transport error: %v", state.Err)
	}
	return state, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Polymarket websocket latency tracker")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  polylatency market <market-slug> [num_events] [calibration_events] [-v] [--adjusted-anomalies]")
	fmt.Fprintln(w, "  polylatency <market-slug> [num_events] [calibration_events] [-v]")
	fmt.Fprintln(w, "  polylatency user [--markets id1,id2] [--max-events n] [-v]")
	fmt.Fprintln(w, "  polylatency init-config [path]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --config path        configuration file (default $POLYLATENCY_CONFIG)")
	fmt.Fprintln(w, "  --metrics-addr addr  serve /metrics, /healthz and /readyz while running")
	fmt.Fprintln(w, "  --no-color           plain report output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables for the user channel:")
	fmt.Fprintf(w, "  %-20s Polymarket API key\n", config.EnvAPIKey)
	fmt.Fprintf(w, "  %-20s Polymarket API secret\n", config.EnvAPISecret)
	fmt.Fprintf(w, "  %-20s Polymarket API passphrase\n", config.EnvAPIPassphrase)
}

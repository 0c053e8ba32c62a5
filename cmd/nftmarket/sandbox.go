package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"nftmarket/config"
	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/bank"
	"nftmarket/native/marketplace"
	"nftmarket/native/nft"
	"nftmarket/observability/logging"
	"nftmarket/observability/metrics"
	"nftmarket/observability/otel"
	"nftmarket/storage"
)

type globalFlags struct {
	configPath string
	dataDir    string
	backend    string
	now        int64
	json       bool
	output     string
}

// sandbox is a local marketplace instance: a persisted store shared by the
// reference registry, the reference bank and the engine.
type sandbox struct {
	ctx      context.Context
	cfg      *config.Config
	market   *config.Market
	db       storage.Database
	state    *state.Manager
	registry *nft.Registry
	bank     *bank.Bank
	engine   *marketplace.Engine
	bus      *events.BusEmitter
	logger   *zap.Logger
	tracing  func(context.Context) error
	out      io.Writer
	format   string
	clock    func() time.Time
}

func openSandbox(cmd *cobra.Command, flags *globalFlags) (*sandbox, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dir := strings.TrimSpace(flags.dataDir); dir != "" {
		cfg.DataDir = dir
	}
	if backend := strings.TrimSpace(flags.backend); backend != "" {
		cfg.Backend = backend
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	market, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	format := outputFormat(flags)
	if format == "" {
		return nil, fmt.Errorf("unknown output format %q", flags.output)
	}

	logger, err := logging.Setup(logging.Options{
		Service:    "nftmarket",
		Env:        cfg.Log.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Console:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownTracing, err := otel.Init(ctx, otel.Config{
		ServiceName: "nftmarket",
		Environment: cfg.Log.Env,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		SampleRatio: cfg.Telemetry.SampleRatio,
		Writer:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	db, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	mgr := state.NewManager(db)
	if err := mgr.EnsureStateVersion(true); err != nil {
		db.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	sb := &sandbox{
		ctx:      ctx,
		cfg:      cfg,
		market:   market,
		db:       db,
		state:    mgr,
		registry: nft.NewRegistry(mgr),
		bank:     bank.New(mgr),
		bus:      events.NewBusEmitter(nil),
		logger:   logger,
		tracing:  shutdownTracing,
		out:      cmd.OutOrStdout(),
		format:   format,
		clock:    time.Now,
	}
	if flags.now > 0 {
		fixed := time.Unix(flags.now, 0)
		sb.clock = func() time.Time { return fixed }
	}
	if err := sb.bus.Subscribe(events.TopicAll, sb.printEvent); err != nil {
		sb.Close()
		return nil, err
	}

	engine := marketplace.NewEngine(market.Address)
	engine.SetState(mgr)
	engine.SetRegistry(sb.registry)
	engine.SetFunds(sb.bank)
	engine.SetEmitter(sb.bus)
	engine.SetPauses(cfg.PauseView())
	engine.SetLogger(logger)
	engine.SetMetrics(metrics.Marketplace())
	engine.SetMaxPrice(market.MaxPrice)
	engine.SetPayoutPolicy(market.Payout)
	engine.SetDebugAssertions(cfg.DebugAssertions)
	engine.SetNowFunc(func() int64 { return sb.clock().Unix() })
	sb.engine = engine

	if _, err := engine.Policy(sb.ctx); err != nil {
		if err := engine.InitPolicy(sb.ctx, market.Owner, market.FeeRecipient, market.TradingFeeBps); err != nil {
			sb.Close()
			return nil, fmt.Errorf("initialise policy: %w", err)
		}
	}
	active, err := engine.SyncMetrics(sb.ctx)
	if err != nil {
		sb.Close()
		return nil, fmt.Errorf("seed metrics: %w", err)
	}
	logger.Debug("sandbox opened",
		logging.MaskField("backend", cfg.Backend),
		logging.MaskField("dataDir", cfg.DataDir),
		logging.MaskField("logFile", cfg.Log.File),
		zap.String("payout", market.Payout.String()),
		zap.Int("activeListings", active))
	return sb, nil
}

func (s *sandbox) Close() {
	s.bus.WaitAsync()
	if err := s.tracing(s.ctx); err != nil {
		s.logger.Warn("flush traces", zap.Error(err))
	}
	s.db.Close()
	_ = s.logger.Sync()
}

// commit persists direct registry and bank writes made outside the engine.
func (s *sandbox) commit() error {
	return s.state.Commit()
}

type eventRecord struct {
	Sequence   uint64            `json:"sequence" yaml:"sequence"`
	Type       string            `json:"type" yaml:"type"`
	Attributes map[string]string `json:"attributes" yaml:"attributes"`
}

func (s *sandbox) printEvent(_ events.Event, record *types.Event) {
	switch s.format {
	case "json":
		_ = json.NewEncoder(s.out).Encode(eventRecord{Sequence: record.Sequence, Type: record.Type, Attributes: record.Attributes})
	case "yaml":
		_ = s.encodeYAML(eventRecord{Sequence: record.Sequence, Type: record.Type, Attributes: record.Attributes})
	default:
		fmt.Fprintf(s.out, "event #%d %s\n", record.Sequence, record.Type)
		for _, key := range record.Keys() {
			fmt.Fprintf(s.out, "  %s=%s\n", key, record.Attributes[key])
		}
	}
}

// view is anything a command prints: encoded as a document with --output
// json or yaml, one text line per entry otherwise.
type view interface {
	lines() []string
}

func (s *sandbox) print(v view) error {
	switch s.format {
	case "json":
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return s.encodeYAML(v)
	}
	for _, line := range v.lines() {
		fmt.Fprintln(s.out, line)
	}
	return nil
}

// encodeYAML writes v as one YAML document preceded by a separator.
func (s *sandbox) encodeYAML(v any) error {
	if _, err := io.WriteString(s.out, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(s.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func outputFormat(flags *globalFlags) string {
	if flags.json {
		return "json"
	}
	switch strings.ToLower(strings.TrimSpace(flags.output)) {
	case "", "text":
		return "text"
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	default:
		return ""
	}
}

// withSandbox opens the sandbox for the duration of fn.
func withSandbox(flags *globalFlags, fn func(cmd *cobra.Command, sb *sandbox, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		sb, err := openSandbox(cmd, flags)
		if err != nil {
			return err
		}
		defer sb.Close()
		return fn(cmd, sb, args)
	}
}

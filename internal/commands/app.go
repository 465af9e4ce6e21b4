package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/config"
	"github.com/cleared-dev/freightbooks/internal/fiscal"
	"github.com/cleared-dev/freightbooks/internal/journal"
	"github.com/cleared-dev/freightbooks/internal/logger"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/posting"
	"github.com/cleared-dev/freightbooks/internal/postlog"
	"github.com/cleared-dev/freightbooks/internal/report"
	"github.com/cleared-dev/freightbooks/internal/store"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// app wires the ledger components for one command run.
type app struct {
	cfg      *config.Config
	root     string // directory holding the config file
	db       *store.DB
	log      zerolog.Logger
	accounts *accounts.Directory
	years    *fiscal.Registry
	ledger   *journal.Ledger
	engine   *posting.Engine
	reporter *report.Reporter
	metrics  *prometheus.Registry
}

func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	path, err := filepath.Abs(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newApp(cmd, opts, cfg, path)
}

func newApp(cmd *cobra.Command, opts *globalOptions, cfg *config.Config, configPath string) (*app, error) {
	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := logger.NewWithOptions(logger.Options{Level: level, Console: cfg.Logging.Console, Out: cmd.ErrOrStderr()})

	db, err := store.Open(store.Config{
		Path:       cfg.StorageDir(configPath),
		InMemory:   cfg.Storage.InMemory,
		SyncWrites: cfg.Storage.SyncWrites,
		MaxRetries: cfg.Storage.MaxRetries,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		root:    filepath.Dir(configPath),
		db:      db,
		log:     log,
		metrics: prometheus.NewRegistry(),
	}
	a.accounts = accounts.NewDirectory(db, accounts.WithLogger(log))
	a.years = fiscal.NewRegistry(db, fiscal.WithLogger(log))
	a.ledger = journal.NewLedger(db, a.accounts, a.years,
		journal.WithLogger(log),
		journal.WithAmountScale(cfg.Posting.Scale()),
	)

	rules := rulesFromConfig(cfg.Posting)
	engineOpts := []posting.Option{
		posting.WithRules(rules),
		posting.WithLogger(log),
		posting.WithMetrics(posting.NewMetrics(a.metrics)),
		posting.WithAutoCreateFiscalYear(cfg.Fiscal.AutoCreate),
	}
	if cfg.Posting.PostingLog {
		engineOpts = append(engineOpts, posting.WithRecorder(postlog.NewFileRecorder(a.root)))
	}
	a.engine = posting.NewEngine(a.accounts, a.years, a.ledger, engineOpts...)
	a.reporter = report.New(a.accounts, a.ledger, report.WithTreasuryAccounts(rules.Cash, rules.Bank))
	return a, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
}

func (a *app) context(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), a.log)
}

func rulesFromConfig(pc config.PostingConfig) posting.Rules {
	rules := posting.Rules{
		Receivables:  pc.Receivables,
		Sales:        pc.Sales,
		VATCollected: pc.VATCollected,
		Bank:         pc.Bank,
		Cash:         pc.Cash,
	}
	for _, m := range pc.CashMethods {
		rules.CashMethods = append(rules.CashMethods, model.PaymentMethod(strings.ToUpper(m)))
	}
	return rules
}

// withApp opens the books, runs fn and closes them again.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a.context(cmd), a)
}

// writeMetrics dumps the run's metrics in the Prometheus text format.
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.metrics.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/code-shreya/subscription-manager/internal/config"
	"github.com/code-shreya/subscription-manager/internal/decision"
	"github.com/code-shreya/subscription-manager/internal/engine"
	"github.com/code-shreya/subscription-manager/internal/extract"
	"github.com/code-shreya/subscription-manager/internal/normalize"
	"github.com/code-shreya/subscription-manager/internal/oracle"
	"github.com/code-shreya/subscription-manager/internal/recurrence"
	"github.com/code-shreya/subscription-manager/internal/service"
	"github.com/code-shreya/subscription-manager/internal/source"
	"github.com/code-shreya/subscription-manager/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/subman/subman.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEmailSource builds the configured email source, or nil when no
// mailbox is connected.
func initEmailSource() (source.EmailSource, error) {
	fixture := viper.GetString("sources.email.fixture")
	if fixture == "" {
		return nil, nil
	}
	return source.NewStaticEmailSource(config.ExpandPath(fixture))
}

// initTransactionSource builds the configured bank source, or nil when no
// bank feed is connected. An OFX/QFX statement export takes precedence
// over the JSON fixture.
func initTransactionSource() (source.TransactionSource, error) {
	if statement := viper.GetString("sources.bank.ofx"); statement != "" {
		return source.NewOFXTransactionSource(config.ExpandPath(statement))
	}
	fixture := viper.GetString("sources.bank.fixture")
	if fixture == "" {
		return nil, nil
	}
	return source.NewStaticTransactionSource(config.ExpandPath(fixture))
}

// initExtractor builds the extraction oracle from config.
func initExtractor() (*extract.EmailExtractor, error) {
	client, err := oracle.NewExtractor(oracle.Config{
		Provider:   viper.GetString("oracle.provider"),
		APIKey:     viper.GetString("oracle.api_key"),
		Model:      viper.GetString("oracle.model"),
		ScriptPath: config.ExpandPath(viper.GetString("oracle.script_path")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction oracle: %w", err)
	}

	cfg := extract.DefaultConfig()
	if delay := viper.GetDuration("oracle.call_delay"); delay > 0 {
		cfg.CallDelay = delay
	}
	if timeout := viper.GetDuration("oracle.call_timeout"); timeout > 0 {
		cfg.CallTimeout = timeout
	}
	return extract.NewEmailExtractor(client, cfg), nil
}

// buildScanEngine wires storage, sources, and the pipeline stages into a
// ready scan engine. needEmails controls whether a missing oracle config
// is fatal; bank-only scans don't require one.
func buildScanEngine(store service.Storage, needEmails bool) (*engine.ScanEngine, error) {
	emails, err := initEmailSource()
	if err != nil {
		return nil, err
	}
	transactions, err := initTransactionSource()
	if err != nil {
		return nil, err
	}

	var extractor *extract.EmailExtractor
	if needEmails {
		if emails == nil {
			return nil, fmt.Errorf("no email source configured; set sources.email.fixture")
		}
		extractor, err = initExtractor()
		if err != nil {
			return nil, err
		}
	}

	normalizer := normalize.NewNormalizer(nil, viper.GetString("home_currency"))
	decider := decision.NewEngine(store, decision.LogNotifier{})

	engineCfg := engine.DefaultConfig()
	if concurrency := viper.GetInt("scan.account_concurrency"); concurrency > 0 {
		engineCfg.AccountConcurrency = concurrency
	}

	return engine.NewScanEngine(
		store,
		emails,
		transactions,
		extractor,
		recurrence.NewDetector(),
		normalizer,
		decider,
		engineCfg,
	), nil
}

// scanWindow resolves the --days flag into a date range ending now.
func scanWindow(days int) (time.Time, time.Time) {
	end := time.Now()
	return end.AddDate(0, 0, -days), end
}

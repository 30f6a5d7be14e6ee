package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bnema/afkguard/internal/adapters/permissions/static"
	chainstore "github.com/bnema/afkguard/internal/adapters/store/chain"
	sqlitestore "github.com/bnema/afkguard/internal/adapters/store/sqlite"
	tomlstore "github.com/bnema/afkguard/internal/adapters/store/toml"
	"github.com/bnema/afkguard/internal/adapters/world"
	"github.com/bnema/afkguard/internal/config"
	"github.com/bnema/afkguard/internal/credit"
	"github.com/bnema/afkguard/internal/logging"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type appLoader func(cmd *cobra.Command) (*app, error)

type app struct {
	cfg   config.Config
	viper *viper.Viper
	log   logr.Logger
	store ports.CreditStore
	// txlog is nil when the sqlite backend is not in use.
	txlog    ports.TransactionLog
	resolver *static.Resolver
	world    ports.WorldProbe
	now      func() time.Time
}

func wireApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	v, err := config.NewViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	store, txlog, err := openStore(ctx, v, cfg, log.WithName("store"))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		viper:    v,
		log:      log,
		store:    store,
		txlog:    txlog,
		resolver: static.NewResolver(cfg.Permissions.Defaults, cfg.SessionGrants()),
		world:    newWorldProbe(cfg),
		now:      time.Now,
	}, nil
}

// openStore returns the credit store for the configured backend. The sqlite
// backend chains to the TOML file on failure; when sqlite cannot be opened
// at all the TOML file serves alone and history is unavailable.
func openStore(ctx context.Context, v *viper.Viper, cfg config.Config, log logr.Logger) (ports.CreditStore, ports.TransactionLog, error) {
	flat, err := tomlstore.NewStore(v)
	if err != nil {
		return nil, nil, fmt.Errorf("wire toml credit store: %w", err)
	}
	if cfg.Storage.Backend == config.BackendTOML {
		return flat, nil, nil
	}

	db, err := sqlitestore.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		log.Error(err, "open sqlite credit store, using toml only", "path", cfg.Storage.SQLitePath)
		return flat, nil, nil
	}

	chained, err := chainstore.NewStoreChecked(db, flat)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("wire credit store chain: %w", err)
	}
	return chained, db, nil
}

func newWorldProbe(cfg config.Config) ports.WorldProbe {
	worlds := cfg.WorldList()
	if len(worlds) == 0 {
		return world.Open{}
	}
	return world.NewProbe(worlds)
}

// offlineLedger builds a ledger for console commands. With no scheduler
// every save and history record happens before the call returns.
func (a *app) offlineLedger(ctx context.Context) (*credit.Ledger, error) {
	ledger := credit.NewLedger(a.cfg.LedgerConfig(), credit.Deps{
		Store:        a.store,
		Transactions: a.txlog,
		Permissions:  a.resolver,
		World:        a.world,
		Log:          a.log.WithName("ledger"),
	})
	if err := ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("load credit accounts: %w", err)
	}
	return ledger, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

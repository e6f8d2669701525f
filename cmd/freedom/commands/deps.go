package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/minqi/freedom/internal/catalog"
	"github.com/minqi/freedom/internal/ingest"
	"github.com/minqi/freedom/internal/provider/tushare"
	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/pkg/config"
	"github.com/minqi/freedom/pkg/database"
	"github.com/minqi/freedom/pkg/logger"
)

// runtime bundles the dependencies every command starts from.
type runtime struct {
	cfg   *config.Config
	log   *logger.Logger
	store *segstore.Store
}

func initRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	if verbose {
		cfg.LogLevel = "debug"
		log = logger.New(cfg)
	}

	return &runtime{
		cfg:   cfg,
		log:   log,
		store: segstore.New(cfg.DataDir, log),
	}, nil
}

// openCatalog connects to PostgreSQL and returns the symbol catalog.
// The caller owns the connection and must Close it.
func (r *runtime) openCatalog() (*database.DB, *catalog.Repository, error) {
	db, err := database.New(r.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, catalog.NewRepository(db.Pool), nil
}

// resolveSymbol turns a bare exchange code into its suffixed ts_code
// via the catalog. Codes that already carry a suffix pass through
// without touching the database. The returned cleanup closes whatever
// the resolution had to open.
func (r *runtime) resolveSymbol(ctx context.Context, code string) (string, func(), error) {
	if strings.Contains(code, ".") {
		return code, func() {}, nil
	}

	db, cat, err := r.openCatalog()
	if err != nil {
		return "", nil, err
	}
	tsCode, err := cat.ResolveTsCode(ctx, code)
	if err != nil {
		db.Close()
		return "", nil, err
	}
	return tsCode, db.Close, nil
}

func (r *runtime) newIngest(cat *catalog.Repository) *ingest.Service {
	provider := tushare.NewClient(r.cfg, r.log)
	return ingest.NewService(provider, cat, r.store, r.log)
}

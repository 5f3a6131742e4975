// Package wire provides dependency injection for the galley application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/galley/internal/adapters/api"
	cliadapter "github.com/example/galley/internal/adapters/cli"
	"github.com/example/galley/internal/adapters/identity"
	"github.com/example/galley/internal/adapters/memory"
	"github.com/example/galley/internal/adapters/postgres"
	"github.com/example/galley/internal/adapters/s3archive"
	"github.com/example/galley/internal/adapters/sqlite"
	"github.com/example/galley/internal/app"
	"github.com/example/galley/internal/config"
	"github.com/example/galley/internal/db"
	"github.com/example/galley/internal/logging"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

var (
	configPath string
	operator   *config.OperatorConfig

	cfg             *config.Config
	dispatchService primary.DispatchService
	store           api.Pinger
	sqliteDB        *sql.DB
	pgPool          *pgxpool.Pool
	once            sync.Once
)

// SetConfigPath selects the config file. Must be called before any accessor.
func SetConfigPath(path string) {
	configPath = path
}

// SetOperator overrides the configured CLI operator. Must be called before any accessor.
func SetOperator(op config.OperatorConfig) {
	operator = &op
}

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// DispatchService returns the singleton DispatchService instance.
func DispatchService() primary.DispatchService {
	once.Do(initServices)
	return dispatchService
}

// SQLiteDB returns the sqlite handle, or nil when another store is configured.
func SQLiteDB() *sql.DB {
	once.Do(initServices)
	return sqliteDB
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if operator != nil {
		cfg.Operator = *operator
	}

	ctx := context.Background()

	// Create repository adapters (secondary ports) for the configured store.
	var (
		manifestRepo secondary.ManifestRepository
		archiveRepo  secondary.ArchiveRepository
	)
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pgPool, err = db.OpenPostgres(ctx, db.PoolConfig{
			URL:          cfg.Store.DatabaseURL,
			MaxRetries:   cfg.Store.MaxRetries,
			InitialDelay: time.Second,
		})
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		repo := postgres.NewManifestRepository(pgPool)
		manifestRepo, archiveRepo, store = repo, postgres.NewArchiveRepository(pgPool), repo
	case config.StoreMemory:
		mem := memory.NewStore()
		repo := mem.Manifests()
		manifestRepo, archiveRepo, store = repo, mem.Archive(), repo
	default:
		path := cfg.Store.SQLitePath
		if path == "" {
			if path, err = db.DefaultPath(); err != nil {
				log.Fatalf("failed to resolve database path: %v", err)
			}
		}
		sqliteDB, err = db.OpenSQLite(path)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		repo := sqlite.NewManifestRepository(sqliteDB)
		manifestRepo, archiveRepo, store = repo, sqlite.NewArchiveRepository(sqliteDB), repo
	}

	units := cfg.UnitRules()
	opts := app.DispatchOptions{
		Policy:        cfg.Policy(),
		UpdateRetries: cfg.Dispatch.UpdateRetries,
		Units:         &units,
	}
	if cfg.Archive.S3Bucket != "" {
		mirror, err := s3archive.New(ctx, cfg.Archive.Region, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
		if err != nil {
			// The store is the durable archive; run without the mirror.
			logging.Warn("archive mirror disabled", logging.Fields{"bucket": cfg.Archive.S3Bucket, "error": err.Error()})
		} else {
			opts.Mirror = mirror
		}
	}

	// Create services (primary ports implementation)
	dispatchService = app.NewDispatchService(manifestRepo, archiveRepo, opts)
}

// Operator returns the identity provider for CLI commands.
func Operator() (secondary.IdentityProvider, error) {
	c := Config()
	return identity.NewOperatorProvider(c.Operator.Name, c.Operator.Role, c.Operator.Branches)
}

// DispatchAdapter returns a new DispatchAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func DispatchAdapter() *cliadapter.DispatchAdapter {
	return DispatchAdapterWithOutput(os.Stdout)
}

// DispatchAdapterWithOutput returns a new DispatchAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func DispatchAdapterWithOutput(out io.Writer) *cliadapter.DispatchAdapter {
	once.Do(initServices)
	return cliadapter.NewDispatchAdapter(dispatchService, out)
}

// Router builds the HTTP router. A JWT secret is required.
func Router() (*gin.Engine, error) {
	once.Do(initServices)
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET (or auth.jwt_secret) is required to serve HTTP")
	}
	handler := api.NewHandler(dispatchService, identity.ContextProvider{}, store)
	return api.NewRouter(handler, identity.NewVerifier(cfg.Auth.JWTSecret), cfg.Server.CORSOrigins), nil
}

// Verifier returns the JWT verifier for the configured secret.
func Verifier() (*identity.Verifier, error) {
	c := Config()
	if c.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET (or auth.jwt_secret) is not set")
	}
	return identity.NewVerifier(c.Auth.JWTSecret), nil
}

// Close releases database connections.
func Close() {
	if sqliteDB != nil {
		sqliteDB.Close()
	}
	if pgPool != nil {
		pgPool.Close()
	}
}

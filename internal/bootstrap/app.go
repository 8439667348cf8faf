// Package bootstrap wires configuration, storage, repositories, services,
// and HTTP handlers into a runnable application.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"presale-backend/internal/files"
	"presale-backend/internal/jobs"
	"presale-backend/internal/llm"
	"presale-backend/internal/llm/ollama"
	"presale-backend/internal/presales"
	"presale-backend/internal/results"
	"presale-backend/internal/shared/config"
	"presale-backend/internal/shared/server"
	"presale-backend/internal/shared/storage/db"
	"presale-backend/internal/shared/storage/object"
	localstore "presale-backend/internal/shared/storage/object/local"
	s3store "presale-backend/internal/shared/storage/object/s3"
	"presale-backend/internal/worker"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	PresalesRepo presales.PresalesRepo
	FilesRepo    files.FilesRepo
	JobsRepo     jobs.JobsRepo
	ResultsRepo  results.ResultsRepo

	FilesService   *files.Service
	ResultsService *results.Service
	LLM            llm.Client
	Processor      *jobs.Processor
	Runner         *worker.Runner
}

// Build prepares shared dependencies and the HTTP router. Without a
// database it falls back to in-memory repositories in dev-like
// environments, which also makes cmd/api self-contained for local runs.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, db.DefaultServerOptions())
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	presaleHandler := presales.NewHandler(app.PresalesRepo)
	fileHandler := files.NewHandler(app.FilesService, app.PresalesRepo)
	jobHandler := jobs.NewHandler(app.JobsRepo, app.PresalesRepo, app.FilesRepo)
	resultHandler := results.NewHandler(app.ResultsService)

	app.Router = server.NewRouter(cfg, presaleHandler, fileHandler, jobHandler, resultHandler)
	return app, nil
}

// BuildWorker prepares dependencies for the standalone worker process.
func BuildWorker(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, db.DefaultWorkerOptions())
	if err != nil {
		return nil, err
	}
	if sqlDB == nil {
		return nil, fmt.Errorf("worker requires DATABASE_URL")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, defaults db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(defaults)
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.PresalesRepo = &presales.PGRepo{DB: app.DB}
		app.FilesRepo = &files.PGRepo{DB: app.DB}
		app.JobsRepo = &jobs.PGRepo{DB: app.DB}
		app.ResultsRepo = &results.PGRepo{DB: app.DB}
	} else {
		app.PresalesRepo = presales.NewMemoryRepo()
		app.FilesRepo = files.NewMemoryRepo()
		app.JobsRepo = jobs.NewMemoryRepo()
		app.ResultsRepo = results.NewMemoryRepo()
	}

	app.FilesService = files.NewService(app.FilesRepo, app.Store)
	app.ResultsService = results.NewService(app.ResultsRepo, app.JobsRepo, app.Config.RoundToHours)

	client, err := ollama.New(app.Config.OllamaURL, app.Config.OllamaModel)
	if err != nil {
		return err
	}
	app.LLM = client

	app.Processor = jobs.NewProcessor(
		app.JobsRepo,
		app.FilesService,
		results.Sink{Repo: app.ResultsRepo},
		app.LLM,
		app.Config.LLMMaxAttempts,
		app.Config.RoundToHours,
	)
	app.Runner = worker.NewRunner(
		app.JobsRepo,
		app.Processor,
		app.Config.WorkerPollInterval,
		app.Config.WorkerConcurrency,
		app.Config.JobTimeout,
	)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

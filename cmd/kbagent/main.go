// Command kbagent is the single binary for this repo, mirroring the
// teacher's main.go dual-mode shape: a `-web` flag switches between a
// one-shot CLI ingestion job and the Gin HTTP server. Unlike the
// teacher (whose CLI mode drove its stats agent conversationally), this
// repo's CLI mode runs one-shot directory-sync/rebuild ingestion jobs,
// since spec.md scopes the conversational surface to the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kbagent/internal/auth"
	"kbagent/internal/chatreply"
	"kbagent/internal/config"
	"kbagent/internal/embedding"
	"kbagent/internal/graph"
	"kbagent/internal/httpapi"
	"kbagent/internal/hybrid"
	"kbagent/internal/ingest"
	"kbagent/internal/logging"
	"kbagent/internal/retrievalprofile"
	"kbagent/internal/secrets"
	"kbagent/internal/store"
)

func main() {
	webMode := flag.Bool("web", false, "run the HTTP server instead of a one-shot CLI ingestion job")
	port := flag.String("port", "8080", "port to run the HTTP server on")
	ingestLibrary := flag.String("ingest-library", "", "library id to ingest (CLI mode)")
	ingestDir := flag.String("ingest-dir", "", "directory to sync into ingest-library (CLI mode)")
	flag.Parse()

	logger, err := logging.Init(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	cfg := config.Load(logger)
	ctx := context.Background()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure database schema", zap.Error(err))
	}
	if err := retrievalprofile.EnsureDefaultProfiles(ctx, db); err != nil {
		logger.Fatal("failed to seed default retrieval profiles", zap.Error(err))
	}
	if err := ensureDefaultAdmin(ctx, db, logger); err != nil {
		logger.Fatal("failed to seed default admin user", zap.Error(err))
	}

	llmClient := newEmbeddingRemoteCaller(cfg, logger)
	embedder := embedding.NewService(embedding.Config{
		Backend:      embedding.Backend(cfg.EmbeddingBackend),
		Dimension:    cfg.DefaultEmbeddingDim,
		ModelName:    cfg.EmbeddingModelName,
		LocalDevice:  cfg.EmbeddingLocalDevice,
		BatchSize:    cfg.EmbeddingBatchSize,
		FallbackHash: cfg.EmbeddingFallbackHash,
	}, llmClient, logger, 10_000)

	builder := graph.NewBuilder(db, logger)
	pipeline := ingest.NewPipeline(db, embedder, builder, logger)
	engine := hybrid.NewEngine(db, embedder, logger)
	orchestrator := chatreply.New(db, engine, logger)
	secretsCodec := secrets.NewCodec(cfg.EncryptionKey, cfg.SecretKey)
	tokens := auth.NewTokenIssuer(cfg.SecretKey, cfg.JWTAlgorithm, cfg.JWTExpireMins)

	if !*webMode {
		runCLI(ctx, pipeline, *ingestLibrary, *ingestDir, logger)
		return
	}

	server := httpapi.NewServer(httpapi.Deps{
		Store: db, Engine: engine, Pipeline: pipeline, Builder: builder,
		Orchestrator: orchestrator, Embedder: embedder, SecretsCodec: secretsCodec,
		Tokens: tokens, Config: cfg, Logger: logger,
	})

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting kbagent in web mode", zap.String("port", *port))
	if err := server.Start(runCtx, ":"+*port); err != nil {
		logger.Error("http server error", zap.Error(err))
		os.Exit(1)
	}
}

// runCLI drives a one-shot ingestion job, matching the teacher's CLI-mode
// shape (no web server, a single synchronous pass over input) but for this
// repo's ingestion pipeline instead of a conversational loop.
func runCLI(ctx context.Context, pipeline *ingest.Pipeline, libraryID, dir string, logger *zap.Logger) {
	if libraryID == "" || dir == "" {
		fmt.Println("usage: kbagent -ingest-library <id> -ingest-dir <path>")
		return
	}
	taskID := "cli-" + time.Now().UTC().Format("20060102150405")
	fmt.Printf("syncing %s into library %s...\n", dir, libraryID)
	pipeline.RunSyncDirectory(ctx, taskID, libraryID, dir)
	logger.Info("cli ingestion finished", zap.String("library_id", libraryID), zap.String("dir", dir))
}

// ensureDefaultAdmin seeds a single admin user on a fresh database so
// /auth/login has something to authenticate against; password comes from
// KBAGENT_ADMIN_PASSWORD or defaults to "admin" for local/dev use.
func ensureDefaultAdmin(ctx context.Context, db *store.Store, logger *zap.Logger) error {
	if _, err := db.GetUserByUsername(ctx, "admin"); err == nil {
		return nil
	}
	password := os.Getenv("KBAGENT_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := db.CreateUser(ctx, "admin", hash, "admin"); err != nil {
		return err
	}
	logger.Warn("seeded default admin user; change its password before exposing this server")
	return nil
}

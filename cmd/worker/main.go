package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stratus/internal/config"
	"stratus/internal/database"
	"stratus/internal/queue"
	"stratus/internal/repository/postgres"
	"stratus/internal/service/cascade"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("worker starting",
		"environment", cfg.Environment,
		"table_prefix", cfg.TablePrefix,
		"redis_addr", cfg.RedisAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if cfg.Environment != "prod" {
		if err := database.EnsureSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderRepo := postgres.NewFolderRepository(repoConfig)
	fileRepo := postgres.NewFileRepository(repoConfig)
	jobRepo := postgres.NewJobExecutionRepository(repoConfig)

	metrics := cascade.NewMetrics(prometheus.DefaultRegisterer)
	reconciler := cascade.NewReconciler(folderRepo, fileRepo, jobRepo, metrics, logger)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	jobsCfg, err := config.LoadJobsFile(cfg.JobsFile)
	if err != nil {
		log.Fatalf("Failed to load jobs file: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	for _, job := range jobsCfg.Jobs {
		payload, err := json.Marshal(queue.ReconcilePayload{TriggerID: "scheduler"})
		if err != nil {
			log.Fatalf("Failed to marshal job payload: %v", err)
		}
		opts := []asynq.Option{
			asynq.Queue(job.Queue),
			asynq.MaxRetry(0),
		}
		if job.UniqueFor > 0 {
			opts = append(opts, asynq.Unique(time.Duration(job.UniqueFor)))
		}
		entryID, err := scheduler.Register(job.Schedule, asynq.NewTask(job.Name, payload), opts...)
		if err != nil {
			log.Fatalf("Failed to register job %q: %v", job.Name, err)
		}
		logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule, "entry_id", entryID)
	}

	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Concurrency 1 on the cascade queue: exactly one logical run owns a
	// window at a time.
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{queue.CascadeQueue: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReconcileTask, func(ctx context.Context, task *asynq.Task) error {
		var payload queue.ReconcilePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return err
		}
		triggerID := payload.TriggerID
		if taskID, ok := asynq.GetTaskID(ctx); ok && triggerID == "scheduler" {
			triggerID = "scheduler:" + taskID
		}
		return reconciler.Run(ctx, triggerID)
	})

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closeLog := func() {}
	if cfg.LogDir != "" {
		f, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closeLog = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	return logger, closeLog, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

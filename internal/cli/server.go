package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"assessment-monitor-service/internal/app"
	"assessment-monitor-service/internal/config"
	"assessment-monitor-service/internal/domain"
	"assessment-monitor-service/internal/events"
	"assessment-monitor-service/internal/infra/memory"
	"assessment-monitor-service/internal/infra/postgres"
	infraredis "assessment-monitor-service/internal/infra/redis"
	transport "assessment-monitor-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment monitor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, newLogger())
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		loader    memory.AssessmentLoader
		students  app.StudentRepository
		rosters   app.RosterRepository
		attempts  app.AttemptRepository
		cleanupDB = func() {}
	)
	if cfg.Postgres.URL != "" {
		db := openBun(cfg.Postgres.URL)
		if err := migrateDB(ctx, db, logger); err != nil {
			db.Close()
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			db.Close()
			return err
		}
		directory := postgres.NewDirectory(pool)
		loader = postgres.NewAssessmentLoader(pool)
		students, rosters = directory, directory
		attempts = postgres.NewAttemptRepository(db)
		cleanupDB = func() {
			pool.Close()
			_ = db.Close()
		}
	} else {
		logger.Warn("postgres not configured, serving the sample assessment from memory")
		directory := memory.NewDirectory(sampleEnrollments())
		loader = memory.NewStaticAssessmentLoader(sampleAssessments())
		students, rosters = directory, directory
		attempts = memory.NewAttemptRepository()
	}
	defer cleanupDB()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	assessmentTTL := config.TTLDuration(cfg.Assessment.TTL, 10*time.Minute)

	var assessments app.AssessmentRepository
	var monitorStore app.MonitorStore
	if redisClient != nil {
		assessments = infraredis.NewAssessmentRepository(redisClient, loader, assessmentTTL, logger)
		monitorStore = infraredis.NewMonitorStore(redisClient, redisTTL)
	} else {
		assessments = memory.NewAssessmentRepository(loader, assessmentTTL)
		monitorStore = memory.NewMonitorStore()
	}

	bus, err := events.NewTransport(events.TransportConfig{
		Driver:       cfg.Events.Driver,
		KafkaBrokers: cfg.Events.KafkaBrokers,
		TopicPrefix:  cfg.Events.TopicPrefix,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	publisher := events.NewAsyncPublisher(bus, events.AsyncPublisherConfig{
		QueueSize:   cfg.Events.QueueSize,
		Workers:     cfg.Events.Workers,
		SendTimeout: config.TTLDuration(cfg.Events.SendTimeout, 5*time.Second),
	}, logger)
	defer publisher.Close()

	submissions := app.NewSubmissionService(assessments, students, attempts, publisher, logger)
	summaries := app.NewSummaryService(attempts)
	monitors := app.NewMonitorService(monitorStore, assessments, rosters, bus, logger)
	monitors.SetSnapshotBuffer(cfg.Monitor.SnapshotBuffer)
	defer monitors.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/quiz", transport.NewQuizHandler(submissions, logger).ServeWS)
	mux.HandleFunc("/ws/monitor", transport.NewMonitorHandler(monitors, logger).ServeWS)
	transport.NewSummaryHandler(summaries, monitors, logger).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting assessment monitor service", "port", finalPort, "events_driver", cfg.Events.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleAssessments provides a minimal assessment for running without Postgres.
func sampleAssessments() map[int64]domain.Assessment {
	return map[int64]domain.Assessment{
		1: {
			ID:       1,
			CourseID: 100,
			Title:    "Arithmetic warm-up",
			Questions: []domain.Question{
				{ID: 1, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4", Points: 2},
				{ID: 2, Text: "What is 3 * 3?", Options: []string{"6", "9", "12"}, CorrectAnswer: "9", Points: 3},
			},
		},
	}
}

func sampleEnrollments() map[int64][]domain.Student {
	return map[int64][]domain.Student{
		100: {
			{ID: 1, Name: "Alice"},
			{ID: 2, Name: "Bob"},
			{ID: 3, Name: "Carol"},
		},
	}
}

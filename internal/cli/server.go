package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"itqan-progress-service/internal/app"
	"itqan-progress-service/internal/config"
	"itqan-progress-service/internal/domain"
	"itqan-progress-service/internal/infra/memory"
	pgstore "itqan-progress-service/internal/infra/postgres"
	redisrepo "itqan-progress-service/internal/infra/redis"
	transport "itqan-progress-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progress server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var quizLoader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var catalogLoader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleCatalog())
	if pool != nil {
		quizLoader = pgstore.NewQuizLoader(pool)
		catalogLoader = pgstore.NewCatalogLoader(pool)
	}

	var quizzes app.QuizRepository
	var catalog app.CatalogRepository
	if redisClient != nil {
		quizzes = redisrepo.NewQuizRepository(redisClient, quizLoader, quizTTL)
		catalog = redisrepo.NewCatalogRepository(redisClient, catalogLoader, catalogTTL)
	} else {
		quizzes = memory.NewQuizRepository(quizLoader, quizTTL)
		catalog = memory.NewCatalogRepository(catalogLoader, catalogTTL)
	}

	var attempts app.AttemptStore
	var users app.UserStore
	var awards app.AwardStore
	if pool != nil {
		store := pgstore.NewProgressStore(pool)
		attempts, users, awards = store, store, store
	} else {
		store := memory.NewProgressStore()
		store.SeedUser(domain.UserStats{UserID: "student-1", Grade: 5})
		store.SeedRewards(sampleCatalog())
		attempts, users, awards = store, store, store
	}

	service := app.NewProgressService(quizzes, catalog, attempts, users, awards, cfg.Gamification)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting progress service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo content for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Arithmetic basics",
			TimeLimitMinutes: 10,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points: 10,
				},
				{
					ID:     "q2",
					Prompt: "What is 3 * 3?",
					Options: []domain.Option{
						{ID: "o1", Text: "6", Correct: false},
						{ID: "o2", Text: "9", Correct: true},
					},
					Points: 10,
				},
			},
		},
	}
}

// sampleCatalog mirrors the seed badges the platform ships with.
func sampleCatalog() []domain.Achievement {
	return []domain.Achievement{
		{ID: "first-steps", Name: "First Steps", Criteria: domain.CriteriaCount, Threshold: 1, GradeGroup: domain.GradeAll, Reward: 10},
		{ID: "high-scorer", Name: "High Scorer", Criteria: domain.CriteriaScore, Threshold: 90, GradeGroup: domain.GradeAll, Reward: 25},
		{ID: "perfectionist", Name: "Perfectionist", Criteria: domain.CriteriaPerfect, Threshold: 100, GradeGroup: domain.GradeAll, Reward: 50},
		{ID: "week-streak", Name: "Week Streak", Criteria: domain.CriteriaStreak, Threshold: 7, GradeGroup: domain.GradeAll, Reward: 40},
		{ID: "quick-thinker", Name: "Quick Thinker", Criteria: domain.CriteriaSpeed, Threshold: 120, GradeGroup: domain.GradeElementary, Reward: 20},
	}
}

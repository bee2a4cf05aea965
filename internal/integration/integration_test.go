package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"itqan-progress-service/internal/app"
	"itqan-progress-service/internal/config"
	"itqan-progress-service/internal/domain"
	pgstore "itqan-progress-service/internal/infra/postgres"
	pgmigrations "itqan-progress-service/internal/infra/postgres/migrations"
	infraredis "itqan-progress-service/internal/infra/redis"
)

func TestCompleteAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	seedDatabase(t, ctx, pgURL, yesterday)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := pgstore.NewProgressStore(pool)
	quizzes := infraredis.NewQuizRepository(redisClient, pgstore.NewQuizLoader(pool), 5*time.Minute)
	catalog := infraredis.NewCatalogRepository(redisClient, pgstore.NewCatalogLoader(pool), 5*time.Minute)
	cfg := config.Gamification{SpeedBonusEnabled: true, SpeedBonusPercentage: 10}
	service := app.NewProgressService(quizzes, catalog, store, store, store, cfg)

	attempt, err := service.StartAttempt(ctx, "quiz-1", "u1", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := service.CompleteAttempt(ctx, attempt.ID, []domain.AnswerSubmission{
		{QuestionID: "q1", OptionID: "o2"}, // correct
		{QuestionID: "q2", OptionID: "o1"}, // wrong
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// 1/2 correct within half the limit: 50 + 5 bonus; 10 points * 1.1.
	if result.Score != 55 || result.Points != 11 {
		t.Fatalf("expected 55/11, got %v/%d", result.Score, result.Points)
	}
	if result.Streak != 5 {
		t.Fatalf("expected streak 5 after yesterday's activity, got %d", result.Streak)
	}
	if len(result.NewAchievements) != 1 || result.NewAchievements[0] != "streak-5" {
		t.Fatalf("expected streak-5 award, got %v", result.NewAchievements)
	}

	stats, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Points != 51 { // 11 attempt points + 40 badge reward
		t.Fatalf("expected 51 points, got %d", stats.Points)
	}
	if stats.Streak != 5 || stats.CompletedQuizzes != 1 {
		t.Fatalf("unexpected aggregates %+v", stats)
	}

	// Completing the same attempt again must be rejected and change nothing.
	if _, err := service.CompleteAttempt(ctx, attempt.ID, nil); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}

	// A second award of the same badge hits the unique constraint and no-ops.
	newly, err := store.Award(ctx, "u1", "streak-5")
	if err != nil {
		t.Fatalf("duplicate award must not error: %v", err)
	}
	if newly {
		t.Fatalf("duplicate award must not be newly recorded")
	}
	stats, _ = store.GetUser(ctx, "u1")
	if stats.Points != 51 {
		t.Fatalf("duplicate award must not credit points again, got %d", stats.Points)
	}
}

func seedDatabase(t *testing.T, ctx context.Context, dsn string, lastActivity time.Time) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	quiz := domain.Quiz{
		ID:               "quiz-1",
		Title:            "Fractions",
		TimeLimitMinutes: 10,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "1/2 + 1/2?", Options: []domain.Option{
				{ID: "o1", Text: "1/4"},
				{ID: "o2", Text: "1", Correct: true},
			}, Points: 10},
			{ID: "q2", Prompt: "1/3 + 1/3?", Options: []domain.Option{
				{ID: "o1", Text: "1/6"},
				{ID: "o2", Text: "2/3", Correct: true},
			}, Points: 10},
		},
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb)`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO users (id, grade, points, streak, last_activity_date, completed_quizzes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		"u1", 5, 0, 4, lastActivity.Format("2006-01-02"), 0); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO achievements (id, name, criteria, threshold, grade_group, reward, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"streak-5", "Five in a Row", "streak", 5, "all", 40, 1); err != nil {
		t.Fatalf("insert achievement: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "progress", "POSTGRES_PASSWORD": "progresspass", "POSTGRES_DB": "progressdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://progress:progresspass@%s:%s/progressdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-attempt/internal/app"
	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/domain"
	"quiz-attempt/internal/infra/memory"
	pgstore "quiz-attempt/internal/infra/postgres"
	pgmigrations "quiz-attempt/internal/infra/postgres/migrations"
	infraredis "quiz-attempt/internal/infra/redis"
	"quiz-attempt/internal/infra/restapi"
	"quiz-attempt/internal/stub"
	transport "quiz-attempt/internal/transport/http"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	// Backend side: stub API over Postgres attempts and a Redis quiz cache.
	issuer := auth.NewIssuer("integration", time.Hour)
	grading := stub.NewService(infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute), pgstore.NewAttemptRepository(pool))
	backend := httptest.NewServer(transport.NewStubHandler(grading, issuer, nil, zerolog.Nop()).Router())
	defer backend.Close()

	// Runner side: REST client, Redis session markers and checkpoints.
	token, _ := issuer.Issue("student@college.edu", auth.RoleStudent)
	store, err := auth.StoreForToken(token)
	if err != nil {
		t.Fatalf("student credentials: %v", err)
	}
	ctx = auth.NewContext(ctx, store)
	client := restapi.NewClient(backend.URL, nil)
	checkpoints := infraredis.NewCheckpointStore(redisClient, time.Hour)
	service := app.NewAttemptService(client,
		infraredis.NewSessionStore(redisClient, time.Minute, infraredis.WithOwner("runner-it")),
		memory.NewResultRepository(client, time.Minute),
		app.WithCheckpoints(checkpoints),
	)

	session, err := service.Start(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Attempt().Duration != 10*time.Minute || len(session.Answers().Questions()) != 2 {
		t.Fatalf("unexpected attempt %+v", session.Attempt())
	}
	if err := session.SetAnswer(ctx, "q1", "4"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	saved, _ := checkpoints.Load(ctx, session.ID())
	if saved["q1"] != "4" {
		t.Fatalf("expected checkpoint in redis, got %v", saved)
	}

	result, err := service.Submit(ctx, session.ID(), domain.TriggerUser)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 1 || result.TotalMarks != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	rec, err := pgstore.NewAttemptRepository(pool).GetAttempt(ctx, session.ID())
	if err != nil {
		t.Fatalf("load attempt row: %v", err)
	}
	if !rec.Submitted() || rec.Score != 1 || len(rec.Responses) != 2 || rec.Responses[1].Response != "" {
		t.Fatalf("unexpected stored attempt %+v", rec)
	}

	stored, err := service.Result(ctx, session.ID())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if stored.Score != 1 || stored.QuizTitle != "General Knowledge" || stored.SubmissionTime == nil {
		t.Fatalf("unexpected stored result %+v", stored)
	}
	if saved, _ := checkpoints.Load(ctx, session.ID()); len(saved) != 0 {
		t.Fatalf("expected checkpoint cleared after submit, got %v", saved)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
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
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		Title:           "General Knowledge",
		DurationMinutes: 10,
		Questions: []domain.QuizQuestion{
			{ID: "q1", Prompt: "What is 2 + 2?", Points: 1, Options: []domain.Option{
				{Text: "3"}, {Text: "4", Correct: true}, {Text: "5"},
			}},
			{ID: "q2", Prompt: "Which planet is known as the Red Planet?", Points: 1, Options: []domain.Option{
				{Text: "Venus"}, {Text: "Mars", Correct: true},
			}},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

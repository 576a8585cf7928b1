package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/config"
	"quiz-attempt/internal/domain"
	"quiz-attempt/internal/infra/memory"
	pgstore "quiz-attempt/internal/infra/postgres"
	infraredis "quiz-attempt/internal/infra/redis"
	"quiz-attempt/internal/logger"
	"quiz-attempt/internal/stub"
	transport "quiz-attempt/internal/transport/http"
)

// NewStubCmd runs a local stand-in for the portal backend.
func NewStubCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stub",
		Short: "Serve the student attempt API from local quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStub(cmd.Context(), *configPath, *port)
		},
	}
}

func runStub(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	var (
		loader   memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
		attempts stub.AttemptStore = memory.NewAttemptStore()
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgstore.NewQuizLoader(pool)
		attempts = pgstore.NewAttemptRepository(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes stub.QuizRepository = memory.NewQuizRepository(loader, quizTTL)
	if cfg.Redis.Addr != "" {
		redisClient := newRedisClient(cfg)
		defer redisClient.Close()
		quizzes = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	}

	secret := cfg.Stub.JWTSecret
	if secret == "" {
		secret = "dev-secret"
		log.Warn().Msg("stub.jwtSecret not set; using an insecure development secret")
	}
	issuer := auth.NewIssuer(secret, config.TTLDuration(cfg.Stub.TokenTTL, 8*time.Hour))

	users := make([]transport.Credential, 0, len(cfg.Stub.Users))
	for _, u := range cfg.Stub.Users {
		users = append(users, transport.Credential{Email: u.Email, Password: u.Password, Role: u.Role})
	}
	if len(users) == 0 {
		users = append(users, transport.Credential{Email: "student@college.edu", Password: "student", Role: auth.RoleStudent})
	}

	service := stub.NewService(quizzes, attempts, stub.WithLogger(log.With().Str("component", "grading").Logger()))
	handler := transport.NewStubHandler(service, issuer, users, log)

	listen := portFlag
	if listen == "" {
		listen = cfg.Stub.Port
	}
	if listen == "" {
		listen = "8081"
	}
	return serveUntilSignal(ctx, newHTTPServer(listen, handler.Router()), log)
}

// sampleQuizzes backs the stub when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:              "quiz-1",
			Title:           "General Knowledge",
			DurationMinutes: 10,
			Questions: []domain.QuizQuestion{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{Text: "3"}, {Text: "4", Correct: true}, {Text: "5"}, {Text: "6"},
					},
					Points: 1,
				},
				{
					ID:     "q2",
					Prompt: "Which planet is known as the Red Planet?",
					Options: []domain.Option{
						{Text: "Venus"}, {Text: "Mars", Correct: true}, {Text: "Jupiter"}, {Text: "Mercury"},
					},
					Points: 1,
				},
			},
		},
	}
}

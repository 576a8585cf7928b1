package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-attempt/internal/config"
	"quiz-attempt/internal/domain"
	pgstore "quiz-attempt/internal/infra/postgres"
	infraredis "quiz-attempt/internal/infra/redis"
	"quiz-attempt/internal/logger"
)

// NewSeedCmd loads quizzes from a JSON file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import quizzes (JSON array) into the stub database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var quizzes []domain.Quiz
			if err := json.Unmarshal(raw, &quizzes); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			loader := pgstore.NewQuizLoader(pool)

			var cache *infraredis.QuizRepository
			if cfg.Redis.Addr != "" {
				redisClient := newRedisClient(cfg)
				defer redisClient.Close()
				cache = infraredis.NewQuizRepository(redisClient, loader, 0)
			}

			for _, quiz := range quizzes {
				if quiz.ID == "" {
					return fmt.Errorf("quiz %q has no id", quiz.Title)
				}
				if err := loader.SaveQuiz(ctx, quiz); err != nil {
					return err
				}
				if cache != nil {
					if err := cache.Invalidate(ctx, quiz.ID); err != nil {
						log.Warn().Err(err).Str("quiz_id", quiz.ID).Msg("cache invalidate failed")
					}
				}
				log.Info().Str("quiz_id", quiz.ID).Int("questions", len(quiz.Questions)).Msg("quiz seeded")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "quizzes.json", "JSON file with an array of quizzes")
	return cmd
}

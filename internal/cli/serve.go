package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-attempt/internal/app"
	"quiz-attempt/internal/config"
	"quiz-attempt/internal/infra/memory"
	infraredis "quiz-attempt/internal/infra/redis"
	"quiz-attempt/internal/infra/restapi"
	"quiz-attempt/internal/logger"
	transport "quiz-attempt/internal/transport/http"
)

// NewServeCmd runs the attempt runner against the configured backend.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run timed quiz attempts over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, *port)
		},
	}
}

func runServe(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	backendURL := cfg.Backend.URL
	if backendURL == "" {
		backendURL = "http://localhost:8081"
	}

	// Every request carries its own student's credentials; the client holds none.
	client := restapi.NewClient(backendURL, nil,
		restapi.WithTimeout(config.TTLDuration(cfg.Backend.Timeout, restapi.DefaultTimeout)),
		restapi.WithSubmitBody(restapi.SubmitBody(cfg.Backend.SubmitBody)),
		restapi.WithLogger(log.With().Str("component", "backend").Logger()),
	)
	results := memory.NewResultRepository(client, config.TTLDuration(cfg.Attempt.ResultTTL, 5*time.Minute))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var sessions app.SessionRepository = memory.NewSessionStore()
	if redisClient != nil {
		shared := infraredis.NewSessionStore(redisClient,
			config.TTLDuration(cfg.Redis.SessionLease, 30*time.Second),
			infraredis.WithOwner(runnerID()),
			infraredis.WithSessionLogger(log.With().Str("component", "sessions").Logger()),
		)
		go shared.Run(ctx)
		sessions = shared
	}

	opts := []app.ServiceOption{
		app.WithServiceLogger(log.With().Str("component", "attempts").Logger()),
		app.WithTickInterval(config.TTLDuration(cfg.Attempt.TickInterval, time.Second)),
		app.WithExpiryTimeout(config.TTLDuration(cfg.Attempt.SubmitTimeout, 30*time.Second)),
	}
	checkpointTTL := config.TTLDuration(cfg.Attempt.CheckpointTTL, 24*time.Hour)
	switch cfg.Attempt.Checkpoints {
	case "memory":
		opts = append(opts, app.WithCheckpoints(memory.NewCheckpointStore()))
	case "redis":
		if redisClient == nil {
			log.Warn().Msg("redis checkpoints requested without redis.addr; checkpoints disabled")
			break
		}
		opts = append(opts, app.WithCheckpoints(infraredis.NewCheckpointStore(redisClient, checkpointTTL)))
	}
	service := app.NewAttemptService(client, sessions, results, opts...)

	listen := portFlag
	if listen == "" {
		listen = cfg.Server.Port
	}
	if listen == "" {
		listen = "8080"
	}
	server := newHTTPServer(listen, transport.NewRunnerRouter(service, cfg.Server.AllowedOrigins, log))
	log.Info().Str("backend", backendURL).Msg("attempt runner configured")
	return serveUntilSignal(ctx, server, log)
}

// runnerID names this process in session leases.
func runnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "runner"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// newHTTPServer leaves read/write deadlines unset; upgraded sockets outlive them.
func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func serveUntilSignal(ctx context.Context, server *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jaekwang-park/todo-dynamo/internal/attachment"
	"github.com/jaekwang-park/todo-dynamo/internal/awsclient"
	"github.com/jaekwang-park/todo-dynamo/internal/config"
	todohttp "github.com/jaekwang-park/todo-dynamo/internal/http"
	"github.com/jaekwang-park/todo-dynamo/internal/middleware"
	"github.com/jaekwang-park/todo-dynamo/internal/repository"
	"github.com/jaekwang-park/todo-dynamo/internal/service"
)

func main() {
	// Initial logger at info level; reconfigured after config load
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.ParseLogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"env", cfg.AppEnv,
		"port", cfg.ServerPort,
		"auth_dev_mode", cfg.AuthDevMode,
		"log_level", cfg.LogLevel,
		"region", cfg.AWS.Region,
		"table", cfg.Table.Name,
	)

	awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS.Region, cfg.AWS.EndpointURL)
	if err != nil {
		return err
	}

	// Record store
	todoRepo, err := repository.NewDynamoTodo(
		dynamodb.NewFromConfig(awsCfg),
		cfg.Table.Name,
		repository.WithCreatedAtIndex(cfg.Table.CreatedAtIndex),
		repository.WithTodoIDIndex(cfg.Table.TodoIDIndex),
		repository.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create todo repository: %w", err)
	}

	initCtx, cancelInit := context.WithTimeout(ctx, 15*time.Second)
	err = todoRepo.Init(initCtx, cfg.Table.SkipSchemaCheck)
	cancelInit()
	if err != nil {
		return err
	}
	logger.Info("todo table ready", "table", cfg.Table.Name)

	// Attachments
	expiration, err := cfg.Attachment.URLExpiration()
	if err != nil {
		return err
	}
	issuer, err := attachment.NewIssuer(attachment.NewPresigner(awsCfg), cfg.Attachment.Bucket, expiration, cfg.AWS.EndpointURL)
	if err != nil {
		return fmt.Errorf("failed to create attachment issuer: %w", err)
	}
	logger.Info("attachment issuer ready",
		"bucket", issuer.Bucket(),
		"url_expiration", issuer.Expiration().String(),
		"private", cfg.Attachment.PrivateBucket,
	)

	// Services
	todoSvc := service.NewTodoService(todoRepo, issuer,
		service.WithPrivateAttachments(cfg.Attachment.PrivateBucket),
		service.WithLogger(logger),
	)

	// Auth middleware
	authCfg := middleware.AuthConfig{
		DevMode: cfg.AuthDevMode,
	}
	if !cfg.AuthDevMode {
		authCfg.Keys = middleware.NewJWKSClient(cfg.Auth.JWKSURL)
		authCfg.Issuer = cfg.Auth.Issuer
		authCfg.Audience = cfg.Auth.Audience
	}
	auth, err := middleware.NewAuth(authCfg)
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	// HTTP Server
	srv := todohttp.NewServer(cfg.ServerPort, logger, todoSvc, auth)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}

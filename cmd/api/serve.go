package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/go-api-accounts/internal/application/auth"
	"github.com/go-api-accounts/internal/application/notification"
	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-accounts/internal/infrastructure/jwt"
	"github.com/go-api-accounts/internal/infrastructure/redislock"
	"github.com/go-api-accounts/internal/infrastructure/smtp"
	"github.com/go-api-accounts/internal/infrastructure/sns"
	"github.com/go-api-accounts/internal/infrastructure/sqlstore"
	"github.com/go-api-accounts/internal/pkg/keylock"
	"github.com/go-api-accounts/internal/pkg/otp"
	"github.com/go-api-accounts/internal/pkg/password"
	transporthttp "github.com/go-api-accounts/internal/transport/http"
)

// accountStore is implemented by both the DynamoDB and the SQL repositories.
type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, accountID string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Save(ctx context.Context, a *domain.Account) error
	Delete(ctx context.Context, a *domain.Account) error
	Ping(ctx context.Context) error
}

type accountLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.JWTSecret = secret
		slog.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	lock, closeLock, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLock()

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}
	hasher, err := password.NewHasher(cfg.PasswordScheme, cfg.PBKDF2Rounds)
	if err != nil {
		return err
	}
	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(auth.ServiceDeps{
		Accounts:       store,
		Hasher:         hasher,
		OTP:            otp.NewGenerator(),
		Tokens:         tokens,
		Notifier:       gateway,
		Locker:         lock,
		OTPTTL:         cfg.OTPTTL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, &transporthttp.Deps{Auth: authSvc, Store: store}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"store", cfg.StoreDriver, "notify", cfg.NotifyDriver, "lock", cfg.LockDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (accountStore, func(), error) {
	if cfg.StoreDriver == config.StoreDynamo {
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open dynamo store: %w", err)
		}
		return dynamo.NewAccountRepo(client, cfg.DynamoTables), func() {}, nil
	}
	db, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	return sqlstore.NewAccountRepo(db), func() { _ = db.Close() }, nil
}

func openLocker(ctx context.Context, cfg *config.Config) (accountLocker, func(), error) {
	if cfg.LockDriver != config.LockRedis {
		return keylock.New(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return redislock.New(client, cfg.LockTTL), func() { _ = client.Close() }, nil
}

func newGateway(cfg *config.Config) (*notification.Gateway, error) {
	if cfg.NotifyDriver == config.NotifySNS {
		p, err := sns.NewPublisher(cfg)
		if err != nil {
			return nil, fmt.Errorf("sns publisher: %w", err)
		}
		return notification.NewTopicGateway(p, cfg.FrontendURL, cfg.OTPTTL), nil
	}
	return notification.NewEmailGateway(smtp.NewMailer(cfg), cfg.FrontendURL, cfg.OTPTTL), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

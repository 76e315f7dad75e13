package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/vurg/notification-service/app/credential"
	"github.com/vurg/notification-service/app/lock"
	"github.com/vurg/notification-service/app/provider"
	"github.com/vurg/notification-service/config"
)

const credentialLockKey = "notifications:credential:refresh"

// resources holds the optional backing stores selected by configuration.
type resources struct {
	redis *redis.Client
	db    *sql.DB
}

// openResources connects to Redis and MySQL only when a backend needs them.
func openResources(ctx context.Context, cfg *config.Config) (*resources, error) {
	res := &resources{}

	if cfg.UsesRedis() {
		res.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := res.redis.Ping(ctx).Err(); err != nil {
			res.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	if cfg.LockBackend == "mysql" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MySQLMaxOpen)
		db.SetMaxIdleConns(cfg.MySQLMaxIdle)
		db.SetConnMaxLifetime(cfg.MySQLMaxLife)
		res.db = db

		if err := db.PingContext(ctx); err != nil {
			res.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
	}

	return res, nil
}

func (r *resources) Close() {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
}

func buildLocker(cfg *config.Config, res *resources) (lock.Locker, error) {
	switch strings.ToLower(cfg.LockBackend) {
	case "", "local":
		return lock.NewLocalLocker(), nil
	case "redis":
		if res.redis == nil {
			return nil, fmt.Errorf("redis lock backend selected without a redis connection")
		}
		return lock.NewRedisLocker(res.redis), nil
	case "mysql":
		if res.db == nil {
			return nil, fmt.Errorf("mysql lock backend selected without a database connection")
		}
		return lock.NewMySQLLocker(res.db), nil
	default:
		return nil, fmt.Errorf("unsupported LOCK_BACKEND: %s", cfg.LockBackend)
	}
}

func buildCredentialStore(cfg *config.Config, res *resources) (credential.Store, error) {
	switch strings.ToLower(cfg.CredentialStore) {
	case "", "file":
		return credential.NewFileStore(cfg.GmailTokenFile), nil
	case "redis":
		if res.redis == nil {
			return nil, fmt.Errorf("redis credential store selected without a redis connection")
		}
		return credential.NewRedisStore(res.redis, cfg.CredentialRedisKey), nil
	default:
		return nil, fmt.Errorf("unsupported CREDENTIAL_STORE: %s", cfg.CredentialStore)
	}
}

// buildCredentialManager wires the OAuth client config, token store, and
// refresh lock for the Gmail provider.
func buildCredentialManager(cfg *config.Config, res *resources, logger logrus.FieldLogger) (*credential.Manager, *oauth2.Config, error) {
	oauthConfig, err := credential.LoadOAuthConfig(cfg.GmailCredentialsFile, cfg.OAuthRedirectURL(), provider.GmailSendScope)
	if err != nil {
		return nil, nil, err
	}
	store, err := buildCredentialStore(cfg, res)
	if err != nil {
		return nil, nil, err
	}
	locker, err := buildLocker(cfg, res)
	if err != nil {
		return nil, nil, err
	}

	manager := credential.NewManager(store, credential.NewOAuthRefresher(oauthConfig), locker, credentialLockKey, logger.WithField("component", "credential"))
	return manager, oauthConfig, nil
}

func buildEmailProvider(ctx context.Context, cfg *config.Config, res *resources, logger logrus.FieldLogger) (provider.EmailProvider, error) {
	switch strings.ToLower(cfg.EmailProvider) {
	case "", "gmail":
		manager, _, err := buildCredentialManager(cfg, res, logger)
		if err != nil {
			return nil, err
		}
		state, err := manager.State(ctx)
		if err != nil {
			return nil, err
		}
		if state == credential.StateUnauthenticated {
			logger.Warn("no gmail credential stored, sends will fail until the authorize command is run")
		}
		gmailProvider, err := provider.NewGmailProvider(ctx, option.WithHTTPClient(&http.Client{Transport: manager.Transport(nil)}))
		if err != nil {
			return nil, err
		}
		return gmailProvider, nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, err
		}
		return provider.NewSESProvider(awsCfg, cfg.EmailFrom), nil
	case "smtp":
		return provider.NewSMTPProvider(provider.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			Encryption: cfg.SMTPEncryption,
		}), nil
	case "noop":
		return provider.NewNoopProvider(logger), nil
	default:
		return nil, fmt.Errorf("unsupported EMAIL_PROVIDER: %s", cfg.EmailProvider)
	}
}

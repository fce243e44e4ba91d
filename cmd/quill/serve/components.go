package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/quill/cmd/quill/sqlitepath"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/eventstream/kafka"
	"github.com/papercomputeco/quill/pkg/eventstream/nop"
	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/pkg/relay"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/storage/postgres"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
	"github.com/papercomputeco/quill/pkg/verify"
	"github.com/papercomputeco/quill/proxy"
)

// settingsFromConfig extracts the hot-reloadable part of cfg.
func settingsFromConfig(cfg *config.Config) proxy.Settings {
	return proxy.Settings{
		Relay: relay.Config{
			EventPrefix:  cfg.Relay.EventPrefix,
			Sentinel:     cfg.Relay.Sentinel,
			DeltaPath:    cfg.Relay.DeltaPath,
			OpenMarker:   cfg.Relay.OpenMarker,
			CloseMarker:  cfg.Relay.CloseMarker,
			FramePrefix:  cfg.Relay.FramePrefix,
			DropTrailing: cfg.Relay.DropTrailing,
		},
		Prompt: prompt.Options{
			Model:       cfg.Upstream.Model,
			MaxTokens:   int(cfg.Upstream.MaxTokens),
			Temperature: cfg.Upstream.Temperature,
		},
	}
}

func newStorageDriver(ctx context.Context, cfg config.StorageConfig, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		path, err := sqlitepath.ResolveSQLitePath(cfg.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		driver, err := sqlite.NewSQLiteDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

func newPublisher(cfg config.EventsConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	if cfg.Provider != config.EventsKafka {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.BrokerList(),
		Topic:   cfg.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	logger.Info("publishing generation events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return publisher, nil
}

func newVerifier(cfg config.VerifyConfig, logger *slog.Logger) (verify.Verifier, error) {
	if cfg.Provider != config.VerifyTurnstile {
		return verify.Nop{}, nil
	}
	if cfg.Secret == "" {
		return nil, errors.New("verify.secret is required for turnstile verification")
	}
	return verify.NewTurnstile(cfg.Secret, cfg.Endpoint, logger), nil
}

// upstreamHeaders are the static headers a provider asks clients to send.
func upstreamHeaders(provider string) map[string]string {
	if provider == "openrouter" {
		return map[string]string{
			"HTTP-Referer": "https://github.com/papercomputeco/quill",
			"X-Title":      "quill",
		}
	}
	return nil
}

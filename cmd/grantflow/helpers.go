package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/config"
	"github.com/harborlight/grantflow/internal/ledger"
	"github.com/harborlight/grantflow/internal/llm"
	"github.com/harborlight/grantflow/internal/service"
	"github.com/harborlight/grantflow/internal/storage"
)

// initStorage opens the database and runs migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// createLedgerClient builds the ledger client from configuration.
func createLedgerClient() (service.Ledger, error) {
	cfg := ledger.Config{
		BaseURL:      viper.GetString("ledger.base_url"),
		CompanyID:    viper.GetString("ledger.company_id"),
		ClientID:     viper.GetString("ledger.client_id"),
		ClientSecret: viper.GetString("ledger.client_secret"),
		RefreshToken: viper.GetString("ledger.refresh_token"),
		TokenURL:     viper.GetString("ledger.token_url"),
	}
	client, err := ledger.NewClient(cfg, slog.Default())
	if err != nil {
		return nil, common.NewUserError("Ledger connection is not configured. Set the ledger.* keys in your config file or GRANTFLOW_LEDGER_* environment variables.", err)
	}
	return client, nil
}

// createRecommenderPort builds the LLM-backed recommender from configuration.
func createRecommenderPort() (service.Recommender, error) {
	client, err := llm.NewClient(llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	})
	if err != nil {
		return nil, common.NewUserError("AI recommender is not configured. Set llm.provider and llm.api_key in your config file.", err)
	}
	return llm.NewRecommender(client, slog.Default()), nil
}

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/infrastructure/sqlstore"
	"github.com/go-api-accounts/internal/pkg/keylock"
)

func TestOpenStore_SQLite(t *testing.T) {
	cfg := config.Load()
	cfg.StoreDriver = config.StoreSQLite
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "accounts.db")

	store, closeStore, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &sqlstore.AccountRepo{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenLocker_Local(t *testing.T) {
	cfg := config.Load()
	cfg.LockDriver = config.LockLocal

	lock, closeLock, err := openLocker(context.Background(), cfg)
	require.NoError(t, err)
	defer closeLock()
	assert.IsType(t, &keylock.Locker{}, lock)
}

func TestNewGateway_SMTP(t *testing.T) {
	cfg := config.Load()
	cfg.NotifyDriver = config.NotifySMTP
	g, err := newGateway(cfg)
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestRandomSecret(t *testing.T) {
	a, err := randomSecret()
	require.NoError(t, err)
	b, err := randomSecret()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestOpenStore_DynamoConfigErrorIsReturned(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "missing")
	cfg := config.Load()
	cfg.StoreDriver = config.StoreDynamo

	var err error
	assert.NotPanics(t, func() {
		_, _, err = openStore(context.Background(), cfg)
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "open dynamo store")
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, cnf Configuration) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "midas.json")
	data, err := json.Marshal(cnf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestInitConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/midas"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	})

	require.NoError(t, InitConfig(path))
	cnf, err := Fetch()
	require.NoError(t, err)

	assert.Equal(t, "Midas Server", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, DEFAULT_WEBHOOK_QUEUE, cnf.Queue.WebhookQueue)
	assert.Equal(t, DEFAULT_EXPIRY_QUEUE, cnf.Queue.ExpiryQueue)
	assert.Equal(t, 72, cnf.Queue.PendingOperationTTL)
	assert.Equal(t, 3, cnf.Ledger.MaxConflictRetries)
	assert.Contains(t, cnf.Currencies, "USD")
}

func TestInitConfigRequiresDataSource(t *testing.T) {
	path := writeConfigFile(t, Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
	})
	assert.Error(t, InitConfig(path))
}

func TestInitConfigRequiresRedis(t *testing.T) {
	path := writeConfigFile(t, Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/midas"},
	})
	assert.Error(t, InitConfig(path))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIDAS_SERVER_PORT", "6001")
	t.Setenv("MIDAS_PROJECT_NAME", "midas-staging")

	path := writeConfigFile(t, Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/midas"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	})
	require.NoError(t, InitConfig(path))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "6001", cnf.Server.Port)
	assert.Equal(t, "midas-staging", cnf.ProjectName)
}

func TestCurrencyKnown(t *testing.T) {
	cnf := &Configuration{Currencies: []string{"USD", "EUR"}}
	assert.True(t, cnf.CurrencyKnown("USD"))
	assert.True(t, cnf.CurrencyKnown("usd"))
	assert.False(t, cnf.CurrencyKnown("JPY"))
}

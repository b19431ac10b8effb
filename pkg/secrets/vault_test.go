package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyVaultSecrets_KVv2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/carepoint/api", r.URL.Path)
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"CP_TEST_JWT_SECRET":"from-vault","CP_TEST_LIMIT":30,"CP_TEST_KEEP":"vault"},"metadata":{}}}`))
	}))
	defer srv.Close()

	t.Setenv("CP_TEST_JWT_SECRET", "")
	t.Setenv("CP_TEST_LIMIT", "")
	t.Setenv("CP_TEST_KEEP", "local")

	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled:   true,
		Addr:      srv.URL,
		Token:     "root-token",
		Mount:     "secret",
		Path:      "carepoint/api",
		KVVersion: 2,
		Timeout:   time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "from-vault", os.Getenv("CP_TEST_JWT_SECRET"))
	assert.Equal(t, "30", os.Getenv("CP_TEST_LIMIT"))
	assert.Equal(t, "local", os.Getenv("CP_TEST_KEEP"))
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_Incomplete(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault"})
	assert.Error(t, err)
}

func TestSecretURL(t *testing.T) {
	assert.Equal(t, "http://vault:8200/v1/kv/app", secretURL(VaultConfig{Addr: "http://vault:8200/", Mount: "/kv/", Path: "/app", KVVersion: 1}))
	assert.Equal(t, "http://vault:8200/v1/kv/data/app", secretURL(VaultConfig{Addr: "http://vault:8200", Mount: "kv", Path: "app", KVVersion: 2}))
}

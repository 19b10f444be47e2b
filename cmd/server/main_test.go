package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiranshivaraju/propchat/internal/catalog"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/internal/store"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const rawAdminKey = "pck_bootstrap_admin_secret_0001"

func TestBootstrapAdminKey_RegistersOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, bootstrapAdminKey(ctx, st, rawAdminKey, "admin"))
	require.NoError(t, bootstrapAdminKey(ctx, st, rawAdminKey, "admin"))

	keys, err := st.ListAPIKeys(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, adminKeyName, keys[0].Name)
	assert.Equal(t, rawAdminKey[:8], keys[0].KeyPrefix)
	assert.Contains(t, keys[0].Scopes, "admin")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(keys[0].KeyHash), []byte(rawAdminKey)))

	_, err = st.GetTenant(ctx, "admin")
	assert.NoError(t, err, "the key's tenant is registered")
}

func TestBootstrapAdminKey_RotatedSecret(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, bootstrapAdminKey(ctx, st, rawAdminKey, "admin"))
	require.NoError(t, bootstrapAdminKey(ctx, st, "pck_bootstrap_admin_secret_0002", "admin"))

	keys, err := st.ListAPIKeys(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestBootstrapAdminKey_EmptyIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, bootstrapAdminKey(context.Background(), st, "", "admin"))

	keys, err := st.ListAPIKeys(context.Background(), "admin")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBootstrapAdminKey_TooShort(t *testing.T) {
	err := bootstrapAdminKey(context.Background(), store.NewMemoryStore(), "pck", "admin")
	assert.Error(t, err)
}

type failingKeyStore struct{}

func (failingKeyStore) EnsureTenant(context.Context, string) (*models.Tenant, error) {
	return nil, errors.New("db down")
}
func (failingKeyStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (failingKeyStore) CreateAPIKey(context.Context, *models.APIKey) error { return nil }

func TestBootstrapAdminKey_StoreError(t *testing.T) {
	err := bootstrapAdminKey(context.Background(), failingKeyStore{}, rawAdminKey, "admin")
	assert.ErrorContains(t, err, "ensure tenant")
}

func TestAdminKeyTenant(t *testing.T) {
	assert.Equal(t, "agent-a.com", adminKeyTenant(config.TenancyConfig{Mode: "single", DefaultTenant: "https://www.Agent-A.com/"}))
	assert.Equal(t, adminTenant, adminKeyTenant(config.TenancyConfig{Mode: "multi"}))
}

func TestOpenBackend_Memory(t *testing.T) {
	st, c, cleanup, err := openBackend(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: "memory"},
	})
	require.NoError(t, err)
	defer cleanup()

	assert.NoError(t, st.Ping(context.Background()))
	assert.NoError(t, c.Ping(context.Background()))
}

func TestOpenCatalogSource_Local(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent-a.com.json"),
		[]byte(`[{"id":"P-1","title":"Rumah Cilandak","location":"Jakarta Selatan","price":"Rp. 1 Milyar","type":"Sale"}]`), 0o644))

	src, cleanup, err := openCatalogSource(context.Background(), config.CatalogConfig{Source: "local", LocalDir: dir})
	require.NoError(t, err)
	defer cleanup()

	props, err := catalog.New(src).Resolve(context.Background(), "agent-a.com")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "P-1", props[0].ID)
}

func TestNewSender(t *testing.T) {
	assert.NotNil(t, newSender(config.SMTPConfig{}))
	assert.NotNil(t, newSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "bot@example.com"}))
}

package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldkey/internal/token/models"
	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

func newToken(key string, expiresAt *time.Time) *models.CapabilityToken {
	return &models.CapabilityToken{
		Key:         key,
		TenantID:    id.NewTenantID(),
		SignedToken: "signed-" + key,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Create(ctx, newToken("k1", nil)))

	got, err := store.Find(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "signed-k1", got.SignedToken)

	_, err = store.Find(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCreateDuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Create(ctx, newToken("k1", nil)))
	assert.ErrorIs(t, store.Create(ctx, newToken("k1", nil)), sentinel.ErrConflict)
}

func TestDeleteByKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Create(ctx, newToken("k1", nil)))
	require.NoError(t, store.Create(ctx, newToken("k2", nil)))

	deleted, err := store.DeleteByKeys(ctx, []string{"k1", "k2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = store.Find(ctx, "k1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestExpiredKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Now()

	past := now.Add(-time.Hour)
	exact := now
	future := now.Add(time.Hour)
	require.NoError(t, store.Create(ctx, newToken("past", &past)))
	require.NoError(t, store.Create(ctx, newToken("exact", &exact)))
	require.NoError(t, store.Create(ctx, newToken("future", &future)))
	require.NoError(t, store.Create(ctx, newToken("dormant", nil)))

	keys, err := store.ExpiredKeys(ctx, now)
	require.NoError(t, err)
	// Expiration is inclusive; dormant tokens never expire here.
	assert.ElementsMatch(t, []string{"past", "exact"}, keys)
}

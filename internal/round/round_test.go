package round

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
	"fieldkey/pkg/requestcontext"
)

func TestIsRoundOpen(t *testing.T) {
	store := NewMemory()
	svc := NewService(store)
	ctx := requestcontext.WithTime(context.Background(), time.Now())
	territoryID := id.NewTerritoryID()

	open, err := svc.IsRoundOpen(ctx, territoryID)
	require.NoError(t, err)
	assert.False(t, open)

	store.SetOpenRound(territoryID, 3)
	open, err = svc.IsRoundOpen(ctx, territoryID)
	require.NoError(t, err)
	assert.True(t, open)

	number, err := svc.CurrentRound(ctx, territoryID)
	require.NoError(t, err)
	assert.Equal(t, 3, number)
}

func TestInfo(t *testing.T) {
	store := NewMemory()
	svc := NewService(store)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	_, err := svc.Info(ctx, tenantID, 3)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	store.PutInfo(&Info{TenantID: tenantID, Number: 3, Name: "Spring 2026"})
	info, err := svc.Info(ctx, tenantID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Spring 2026", info.Name)
}

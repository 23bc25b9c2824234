package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ExpiryNotifiesFarmers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	farmer := env.farmer(t, 10)
	corn := env.harvested(t, farmer, "corn", 1, 750)
	env.harvested(t, farmer, "wheat", 1, 500)

	sweep := NewSweepService(env.allocations, env.facilities, env.notifier, 8*24*time.Hour, nil)
	require.NoError(t, sweep.ExpirySweep(ctx))

	env.notifier.mu.Lock()
	defer env.notifier.mu.Unlock()
	require.Len(t, env.notifier.sent, 1)
	sent := env.notifier.sent[0]
	assert.Equal(t, "Harvest expiring soon", sent.Title)
	assert.Equal(t, []string{farmer.ID.String()}, sent.UserIDs)
	assert.Contains(t, sent.Body, "corn harvest of 750 kg")
	assert.Equal(t, corn.ID.String(), sent.Data["allocation_id"])
}

func TestSweep_ExpiryHonoursCancellation(t *testing.T) {
	env := newTestEnv(t)
	farmer := env.farmer(t, 10)
	env.harvested(t, farmer, "corn", 1, 750)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweep := NewSweepService(env.allocations, env.facilities, nil, 8*24*time.Hour, nil)
	assert.Error(t, sweep.ExpirySweep(ctx))
}

func TestSweep_SpaceAudit(t *testing.T) {
	env := newTestEnv(t)
	env.facility(t, 50)
	env.facility(t, 75)

	sweep := NewSweepService(env.allocations, env.facilities, nil, time.Hour, nil)
	assert.NoError(t, sweep.SpaceAuditSweep(context.Background()))
}

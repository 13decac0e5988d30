package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaService_CheckAndIncrement(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewQuotaService(client, newServiceLogger(t), 3)
	ctx := context.Background()

	hasRoom, used := svc.Check(ctx)
	assert.True(t, hasRoom)
	assert.Equal(t, int64(0), used)

	for i := 0; i < 3; i++ {
		svc.Increment(ctx)
	}

	hasRoom, used = svc.Check(ctx)
	assert.False(t, hasRoom)
	assert.Equal(t, int64(3), used)
}

func TestQuotaService_DailyRollover(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewQuotaService(client, newServiceLogger(t), 2).(*quotaService)
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }

	svc.Increment(ctx)
	svc.Increment(ctx)

	hasRoom, used := svc.Check(ctx)
	assert.False(t, hasRoom)
	assert.Equal(t, int64(2), used)

	// A new calendar day reads from a fresh key
	svc.now = func() time.Time { return day.Add(24 * time.Hour) }

	hasRoom, used = svc.Check(ctx)
	assert.True(t, hasRoom)
	assert.Equal(t, int64(0), used)
}

func TestQuotaService_Usage(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewQuotaService(client, newServiceLogger(t), 500)
	ctx := context.Background()

	used, err := svc.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	svc.Increment(ctx)
	svc.Increment(ctx)

	used, err = svc.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
}

func TestQuotaService_Limit(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewQuotaService(client, newServiceLogger(t), 500)
	assert.Equal(t, 500, svc.Limit())
}

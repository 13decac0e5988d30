package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-api/internal/domain"
	"portfolio-api/pkg/logger"
)

type stubProvider struct {
	name  string
	reply string
	err   error
	calls int
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name }

func (s *stubProvider) Invoke(ctx context.Context, system string, history []domain.Message, message string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func TestFailover_PrimaryHealthy(t *testing.T) {
	primary := &stubProvider{name: "primary", reply: "hello from primary"}
	backup := &stubProvider{name: "backup", reply: "hello from backup"}
	f := NewFailover(primary, backup, newTestLogger(t))

	reply, provider, err := f.Invoke(context.Background(), "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from primary", reply)
	assert.Equal(t, "primary", provider.Name())
	assert.False(t, f.UsingBackup())
	assert.Zero(t, backup.calls)
}

func TestFailover_StickySwitch(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("upstream 500")}
	backup := &stubProvider{name: "backup", reply: "backup answer"}
	f := NewFailover(primary, backup, newTestLogger(t))

	// First turn: primary fails, backup answers within the same turn
	reply, provider, err := f.Invoke(context.Background(), "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "backup answer", reply)
	assert.Equal(t, "backup", provider.Name())
	assert.True(t, f.UsingBackup())

	// Later turns skip the primary entirely
	_, _, err = f.Invoke(context.Background(), "", nil, "again")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, backup.calls)
}

func TestFailover_BothFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("primary down")}
	backup := &stubProvider{name: "backup", err: errors.New("backup down")}
	f := NewFailover(primary, backup, newTestLogger(t))

	_, _, err := f.Invoke(context.Background(), "", nil, "hi")
	assert.Error(t, err)
	assert.True(t, f.UsingBackup())
}

func TestFailover_UseBackup(t *testing.T) {
	primary := &stubProvider{name: "primary", reply: "primary answer"}
	backup := &stubProvider{name: "backup", reply: "backup answer"}
	f := NewFailover(primary, backup, newTestLogger(t))

	f.UseBackup()
	reply, provider, err := f.Invoke(context.Background(), "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "backup answer", reply)
	assert.Equal(t, "backup", provider.Name())
	assert.Zero(t, primary.calls)
}

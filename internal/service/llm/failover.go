package llm

import (
	"context"
	"sync/atomic"

	"portfolio-api/internal/domain"
	"portfolio-api/pkg/logger"
)

// Failover routes turns to the primary provider until it fails, then
// sticks to the backup for the remainder of the process lifetime.
type Failover struct {
	primary     Provider
	backup      Provider
	usingBackup atomic.Bool
	log         *logger.Logger
}

// NewFailover wires the primary/backup pair
func NewFailover(primary, backup Provider, log *logger.Logger) *Failover {
	return &Failover{
		primary: primary,
		backup:  backup,
		log:     log.WithField("component", "llm_failover"),
	}
}

// Active returns the provider that will serve the next turn
func (f *Failover) Active() Provider {
	if f.usingBackup.Load() {
		return f.backup
	}
	return f.primary
}

// UsingBackup reports whether the sticky switch has flipped
func (f *Failover) UsingBackup() bool {
	return f.usingBackup.Load()
}

// UseBackup forces the next turns onto the backup provider. Used when the
// daily quota is exhausted so the primary budget is preserved.
func (f *Failover) UseBackup() {
	f.usingBackup.Store(true)
}

// Invoke generates a reply on the active provider, retrying once on the
// backup when the primary fails. The switch is one-way.
func (f *Failover) Invoke(ctx context.Context, systemPrompt string, history []domain.Message, message string) (string, Provider, error) {
	active := f.Active()

	reply, err := active.Invoke(ctx, systemPrompt, history, message)
	if err == nil {
		return reply, active, nil
	}

	if active == f.backup {
		return "", active, err
	}

	f.log.WithError(err).
		WithField("provider", active.Name()).
		Warn("primary provider failed, switching to backup")
	f.usingBackup.Store(true)

	reply, backupErr := f.backup.Invoke(ctx, systemPrompt, history, message)
	if backupErr != nil {
		return "", f.backup, backupErr
	}
	return reply, f.backup, nil
}

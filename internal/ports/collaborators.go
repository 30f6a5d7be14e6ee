package ports

import (
	"context"
	"time"

	"github.com/bnema/afkguard/internal/domain"
)

type PermissionResolver interface {
	HasPermission(id domain.SessionID, permission string) bool
}

// SessionSink carries terminal actions back to the host.
type SessionSink interface {
	RemoveSession(ctx context.Context, id domain.SessionID, reason, message string) error
	RelocateSession(ctx context.Context, id domain.SessionID, dest domain.Location) error
}

type Notifier interface {
	Notify(id domain.SessionID, message string)
}

// WorldProbe answers questions about the host world. Hosts without a world
// model use a probe that reports every location as safe and no spawns.
type WorldProbe interface {
	IsSafe(loc domain.Location) bool
	Spawn(world string) (domain.Location, bool)
}

// ActivityScorer returns an opaque activity score in [0,100].
type ActivityScorer interface {
	ActivityScore(id domain.SessionID) float64
}

type CancelFunc func()

// Scheduler runs tasks off the caller's goroutine. Tasks sharing a key never
// run concurrently.
type Scheduler interface {
	RunNow(key string, task func())
	RunAfter(key string, delay time.Duration, task func()) CancelFunc
	RunEvery(key string, interval time.Duration, task func()) CancelFunc
}

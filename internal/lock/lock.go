// Package lock provides the round-level lock that keeps two triggers from
// running the same operation for the same period at once.
//
// Two implementations exist: Local for a single process and Redis for
// several processes sharing one database.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotObtained is returned when the key is already held.
var ErrNotObtained = errors.New("lock not obtained")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks. Obtain does not wait: a held key fails
// immediately with ErrNotObtained.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Local is an in-process Locker. The ttl is ignored; a lease is held until
// released.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// Obtain takes key if it is free.
func (l *Local) Obtain(_ context.Context, key string, _ time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrNotObtained
	}
	l.held[key] = struct{}{}
	return &localLease{owner: l, key: key}, nil
}

type localLease struct {
	owner *Local
	key   string
	once  sync.Once
}

func (le *localLease) Release(context.Context) error {
	le.once.Do(func() {
		le.owner.mu.Lock()
		delete(le.owner.held, le.key)
		le.owner.mu.Unlock()
	})
	return nil
}

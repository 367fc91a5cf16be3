package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/roach88/coffeematch/internal/lock"
	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/pairing"
	"github.com/roach88/coffeematch/internal/store"
)

const (
	// DefaultInactivityThreshold is the number of consecutive missed
	// meetings after which a participant is unsubscribed.
	DefaultInactivityThreshold = 3

	// DefaultAnswerWindow is how long a follow-up stays open before the
	// inactivity check counts it as "no".
	DefaultAnswerWindow = 7 * 24 * time.Hour

	// DefaultDeliveryConcurrency bounds concurrent gateway calls per batch.
	DefaultDeliveryConcurrency = 4

	// periodLockTTL bounds how long a crashed holder blocks a period.
	periodLockTTL = 10 * time.Minute
)

// Engine runs matching rounds, follow-ups and inactivity checks.
// All exported methods are safe for concurrent use.
type Engine struct {
	store   *store.Store
	gateway notify.Gateway
	clock   Clock
	ids     IDGenerator
	locker  lock.Locker
	logger  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	threshold    int
	answerWindow time.Duration
	concurrency  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the identifier source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLocker sets the per-period locker. Default: an in-process lock.Local.
// Use lock.Redis when several processes share one database.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand sets the random source used to shuffle subscribers.
// Default: a randomly seeded source.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithInactivityThreshold sets the consecutive-miss limit.
func WithInactivityThreshold(n int) Option {
	return func(e *Engine) { e.threshold = n }
}

// WithAnswerWindow sets how long follow-ups stay open.
func WithAnswerWindow(d time.Duration) Option {
	return func(e *Engine) { e.answerWindow = d }
}

// WithDeliveryConcurrency bounds concurrent gateway calls.
func WithDeliveryConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// New creates an Engine over the given store and gateway.
func New(s *store.Store, gw notify.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		gateway:      gw,
		clock:        SystemClock{},
		ids:          UUIDv7Generator{},
		locker:       lock.NewLocal(),
		logger:       slog.Default(),
		threshold:    DefaultInactivityThreshold,
		answerWindow: DefaultAnswerWindow,
		concurrency:  DefaultDeliveryConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.threshold < 1 {
		e.threshold = DefaultInactivityThreshold
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// Threshold returns the configured inactivity threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// pair runs the pairing algorithm under the rng mutex.
func (e *Engine) pair(ids []string, history *pairing.History) [][]string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return pairing.Pair(ids, history, e.rng)
}

// withPeriodLock runs fn while holding the lock for op and periodKey.
func (e *Engine) withPeriodLock(ctx context.Context, op, periodKey string, fn func() error) error {
	lease, err := e.locker.Obtain(ctx, op+":"+periodKey, periodLockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		return &Error{Code: ErrCodeConflict, Message: op + " already running", PeriodKey: periodKey}
	}
	if err != nil {
		return &Error{Code: ErrCodeStorageFailure, Message: "obtain lock", PeriodKey: periodKey, Err: err}
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("release lock failed", "op", op, "period", periodKey, "error", err)
		}
	}()
	return fn()
}

func validatePeriod(periodKey string) error {
	if _, err := model.ParsePeriodKey(periodKey); err != nil {
		return &Error{Code: ErrCodeInvalidArgument, Message: err.Error(), PeriodKey: periodKey}
	}
	return nil
}

// participantsByID loads the given participants in one pass.
func participantsByID(ctx context.Context, tx *store.Tx, ids []string) (map[string]model.Participant, error) {
	out := make(map[string]model.Participant, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		p, err := tx.GetParticipant(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// partnersOf builds notification partners for member of m.
func partnersOf(m model.Match, member string, people map[string]model.Participant) []notify.Partner {
	var out []notify.Partner
	for _, id := range m.Partners(member) {
		out = append(out, notify.PartnerOf(people[id]))
	}
	return out
}

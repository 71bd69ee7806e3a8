package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubvote/internal/domain"
	"clubvote/internal/event"
	"clubvote/internal/metrics"
)

// DefaultSweepInterval is how often closed elections are checked against the retention period
const DefaultSweepInterval = 10 * time.Minute

// ErrRegistryClosed is returned by Open after Close
var ErrRegistryClosed = errors.New("registry closed")

// IDGenerator produces election identifiers
type IDGenerator func() string

// NewUUID returns a random (version 4) UUID string
func NewUUID() string {
	return uuid.NewString()
}

// Option configures a Registry
type Option func(*Registry)

// WithIDGenerator overrides the identifier generator
func WithIDGenerator(gen IDGenerator) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithRetention removes closed elections once they have been closed longer than d.
// Zero keeps closed elections until they are destroyed.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) { r.retention = d }
}

// WithSweepInterval sets how often the retention sweep runs
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepInterval = d }
}

// WithPublisher forwards election events to p. Delivery runs on a queue of
// its own, so a slow publisher never holds up voting or the live feed.
func WithPublisher(p event.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithMetrics records election metrics on m
func WithMetrics(m *metrics.ElectionMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry owns all elections of the server
type Registry struct {
	sessions      map[string]*ElectionSession
	mu            sync.RWMutex
	newID         IDGenerator
	retention     time.Duration
	sweepInterval time.Duration
	publisher     event.Publisher
	outbox        *event.AsyncPublisher
	metrics       *metrics.ElectionMetrics
	logger        *slog.Logger
	done          chan struct{}
	closeOnce     sync.Once
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions:      make(map[string]*ElectionSession),
		newID:         NewUUID,
		sweepInterval: DefaultSweepInterval,
		publisher:     event.NopPublisher{},
		logger:        logger,
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = metrics.NewElectionMetrics(nil, "clubvote")
	}

	r.outbox = event.NewAsyncPublisher(r.publisher, event.DefaultPublishTimeout, logger)

	if r.retention > 0 {
		go r.sweepLoop()
	}

	return r
}

// Open starts a new election and returns its ID
func (r *Registry) Open(title string, candidates []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return "", ErrRegistryClosed
	default:
	}

	id := r.newID()
	if _, exists := r.sessions[id]; exists {
		return "", fmt.Errorf("%w: %s", domain.ErrDuplicateID, id)
	}

	election, err := domain.NewElection(id, title, candidates)
	if err != nil {
		return "", err
	}

	session := NewElectionSession(election, r.logger, r.outbox, r.metrics)
	r.sessions[id] = session

	r.metrics.ElectionsOpened.Inc()
	r.metrics.ElectionsOpen.Inc()

	session.queueEvent(domain.NewEvent(domain.EventElectionOpened, id, &domain.OpenedPayload{
		Title:      election.Title,
		Candidates: election.Candidates(),
	}))

	r.logger.Info("election opened", "electionID", id, "title", title, "candidates", len(candidates))

	return id, nil
}

// Get returns the election with the given ID
func (r *Registry) Get(id string) (*ElectionSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	return session, ok
}

// Destroy closes the election and removes it from the registry
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	session.Close()
	delete(r.sessions, id)
	r.mu.Unlock()

	// Drain and disconnect outside the registry lock
	session.shutdown(true)

	r.logger.Info("election destroyed", "electionID", id)

	return nil
}

// Enumerate returns a snapshot of all elections, oldest first
func (r *Registry) Enumerate() []domain.Summary {
	r.mu.RLock()
	sessions := make([]*ElectionSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.GetCreatedAt().Equal(b.GetCreatedAt()) {
			return a.GetCreatedAt().Before(b.GetCreatedAt())
		}
		return a.GetID() < b.GetID()
	})

	summaries := make([]domain.Summary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.Summary())
	}
	return summaries
}

// Count returns the number of elections in the registry
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close shuts down the registry and all sessions, then waits until every
// queued event has been handed to the publisher
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		sessions := r.sessions
		r.sessions = make(map[string]*ElectionSession)
		r.mu.Unlock()

		for _, session := range sessions {
			session.shutdown(false)
		}

		r.outbox.Close()
	})
}

// sweepLoop periodically removes expired closed elections
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.sweepClosed(now)
		}
	}
}

// sweepClosed removes elections closed for longer than the retention period
func (r *Registry) sweepClosed(now time.Time) int {
	r.mu.Lock()
	expired := make([]*ElectionSession, 0)
	for id, session := range r.sessions {
		if session.IsClosed() && now.Sub(session.GetClosedAt()) > r.retention {
			expired = append(expired, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range expired {
		session.shutdown(true)
		r.logger.Info("expired election removed", "electionID", session.GetID())
	}

	return len(expired)
}

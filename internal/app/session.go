package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clubvote/internal/domain"
	"clubvote/internal/event"
	"clubvote/internal/metrics"
)

// ClientConnection represents a connected live-feed client
type ClientConnection interface {
	Send(message interface{}) error
	GetClientID() string
	Close() error
}

// ElectionDetail is the per-viewer view of an election.
// VoteCount and Votes are only filled in for admins; Votes stays nil until the election closes.
type ElectionDetail struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Candidates []string       `json:"candidates"`
	Closed     bool           `json:"closed"`
	Voted      bool           `json:"voted"`
	VoteCount  *int           `json:"voteCount,omitempty"`
	Votes      map[string]int `json:"votes,omitempty"`
}

// ElectionSession wraps an election with concurrency control and client management
type ElectionSession struct {
	election  *domain.Election
	mu        sync.RWMutex
	clients   map[string]ClientConnection // clientID -> client
	clientsMu sync.RWMutex
	logger    *slog.Logger
	publisher event.Publisher
	metrics   *metrics.ElectionMetrics

	eventsMu sync.Mutex
	events   []*domain.ElectionEvent
	wake     chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

// NewElectionSession creates a new session and starts its event broadcaster.
// The publisher is called from the broadcaster, so it should not block.
func NewElectionSession(election *domain.Election, logger *slog.Logger, publisher event.Publisher, m *metrics.ElectionMetrics) *ElectionSession {
	session := &ElectionSession{
		election:  election,
		clients:   make(map[string]ClientConnection),
		logger:    logger,
		publisher: publisher,
		metrics:   m,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}

	go session.eventLoop()

	return session
}

// GetID returns the election ID
func (s *ElectionSession) GetID() string {
	return s.election.ID
}

// GetCreatedAt returns when the election was opened
func (s *ElectionSession) GetCreatedAt() time.Time {
	return s.election.CreatedAt
}

// GetClosedAt returns when the election was closed, or the zero time
func (s *ElectionSession) GetClosedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election.ClosedAt
}

// IsClosed returns true once the election has been closed
func (s *ElectionSession) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election.IsClosed()
}

// VoteCount returns the number of ballots accepted so far
func (s *ElectionSession) VoteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election.VoteCount()
}

// FinalVotes returns the tally once the election is closed
func (s *ElectionSession) FinalVotes() (map[string]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election.FinalVotes()
}

// Summary returns the listing view of the election
func (s *ElectionSession) Summary() domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election.Summary()
}

// Detail returns the election as seen by the given viewer
func (s *ElectionSession) Detail(voterToken string, admin bool) ElectionDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	detail := ElectionDetail{
		ID:         s.election.ID,
		Title:      s.election.Title,
		Candidates: s.election.Candidates(),
		Closed:     s.election.IsClosed(),
		Voted:      s.election.HasVoted(voterToken),
	}

	if admin {
		count := s.election.VoteCount()
		detail.VoteCount = &count
		if votes, ok := s.election.FinalVotes(); ok {
			detail.Votes = votes
		}
	}

	return detail
}

// Vote records a ballot
func (s *ElectionSession) Vote(b domain.Ballot) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.election.Vote(b)
	s.metrics.VoteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.VotesRejected.WithLabelValues(rejectionReason(err)).Inc()
		s.logger.Debug("ballot rejected", "electionID", s.election.ID, "error", err)
		return err
	}

	s.metrics.VotesAccepted.Inc()

	// Broadcast progress (without revealing the distribution)
	s.queueEvent(domain.NewEvent(domain.EventVoteCast, s.election.ID, &domain.VoteCountPayload{
		VoteCount: s.election.VoteCount(),
	}))

	return nil
}

// Close closes the election to further voting. Closing twice is a no-op.
func (s *ElectionSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.election.Close() {
		return
	}

	s.metrics.ElectionsOpen.Dec()

	votes, _ := s.election.FinalVotes()
	s.queueEvent(domain.NewEvent(domain.EventElectionClosed, s.election.ID, &domain.FinalVotesPayload{
		VoteCount:  s.election.VoteCount(),
		FinalVotes: votes,
	}))

	s.logger.Info("election closed", "electionID", s.election.ID, "voteCount", s.election.VoteCount())
}

// RegisterClient registers a live-feed client
func (s *ElectionSession) RegisterClient(client ClientConnection) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.GetClientID()] = client
}

// UnregisterClient removes a live-feed client
func (s *ElectionSession) UnregisterClient(clientID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, clientID)
}

// GetClientCount returns the number of live-feed clients
func (s *ElectionSession) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Done is closed when the session shuts down
func (s *ElectionSession) Done() <-chan struct{} {
	return s.done
}

// queueEvent appends an event to the broadcast queue. Callers hold s.mu,
// so events are queued in the order the election changed.
func (s *ElectionSession) queueEvent(ev *domain.ElectionEvent) {
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	s.eventsMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// takeEvents swaps out the queued events
func (s *ElectionSession) takeEvents() []*domain.ElectionEvent {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	events := s.events
	s.events = nil
	return events
}

// eventLoop processes events until shutdown, then drains what is left
func (s *ElectionSession) eventLoop() {
	defer close(s.loopDone)

	for {
		select {
		case <-s.done:
			for _, ev := range s.takeEvents() {
				s.dispatch(ev)
			}
			return
		case <-s.wake:
			for _, ev := range s.takeEvents() {
				s.dispatch(ev)
			}
		}
	}
}

func (s *ElectionSession) dispatch(ev *domain.ElectionEvent) {
	s.broadcastEvent(ev)

	if err := s.publisher.Publish(context.Background(), ev); err != nil {
		s.logger.Warn("failed to publish event", "type", ev.Type, "electionID", ev.ElectionID, "error", err)
	}
}

// broadcastEvent sends an event to every live-feed client
func (s *ElectionSession) broadcastEvent(ev *domain.ElectionEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for clientID, client := range s.clients {
		if err := client.Send(ev); err != nil {
			s.logger.Debug("failed to send to client", "clientID", clientID, "error", err)
		}
	}
}

// shutdown stops the event loop after draining it and disconnects all clients.
// With destroyed set, clients and the publisher receive ELECTION_DESTROYED first.
func (s *ElectionSession) shutdown(destroyed bool) {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.loopDone

		if destroyed {
			s.dispatch(domain.NewEvent(domain.EventElectionDestroyed, s.election.ID, nil))
		}

		s.clientsMu.Lock()
		for _, client := range s.clients {
			client.Close()
		}
		s.clients = make(map[string]ClientConnection)
		s.clientsMu.Unlock()
	})
}

// rejectionReason maps a vote error to a metrics label
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyClosed):
		return metrics.ReasonClosed
	case errors.Is(err, domain.ErrUnknownCandidate):
		return metrics.ReasonUnknownCandidate
	case errors.Is(err, domain.ErrDuplicateVote):
		return metrics.ReasonDuplicate
	case errors.Is(err, domain.ErrMissingVoterToken):
		return metrics.ReasonMissingToken
	default:
		return metrics.ReasonOther
	}
}

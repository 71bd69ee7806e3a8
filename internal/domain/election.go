package domain

import (
	"fmt"
	"strings"
	"time"
)

// Election holds the voting state of a single election.
//
// Election is not safe for concurrent use; callers serialize access.
type Election struct {
	ID        string
	Title     string
	CreatedAt time.Time
	ClosedAt  time.Time

	candidates []string
	state      State
	voteCount  int
	votes      map[string]int
	voters     map[string]struct{}
}

// Summary is the listing view of an election. It never carries tallies.
type Summary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Candidates []string `json:"candidates"`
	Closed     bool     `json:"closed"`
}

// NewElection creates an open election with zeroed tallies
func NewElection(id, title string, candidates []string) (*Election, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: at least one candidate is required", ErrValidation)
	}

	votes := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%w: candidate names cannot be empty", ErrValidation)
		}
		if _, dup := votes[c]; dup {
			return nil, fmt.Errorf("%w: duplicate candidate %q", ErrValidation, c)
		}
		votes[c] = 0
	}

	return &Election{
		ID:         id,
		Title:      title,
		CreatedAt:  time.Now(),
		candidates: append([]string(nil), candidates...),
		state:      StateOpen,
		votes:      votes,
		voters:     make(map[string]struct{}),
	}, nil
}

// Candidates returns a copy of the candidate list in creation order
func (e *Election) Candidates() []string {
	return append([]string(nil), e.candidates...)
}

// State returns the current lifecycle state
func (e *Election) State() State {
	return e.state
}

// IsClosed returns true once the election has been closed
func (e *Election) IsClosed() bool {
	return e.state == StateClosed
}

// VoteCount returns the number of accepted ballots. Readable in any state.
func (e *Election) VoteCount() int {
	return e.voteCount
}

// HasVoted reports whether the token has already cast a ballot
func (e *Election) HasVoted(voterToken string) bool {
	if voterToken == "" {
		return false
	}
	_, ok := e.voters[voterToken]
	return ok
}

// Vote records a ballot. A rejected ballot leaves the election unchanged.
func (e *Election) Vote(b Ballot) error {
	if e.IsClosed() {
		return ErrAlreadyClosed
	}

	if _, ok := e.votes[b.Candidate]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCandidate, b.Candidate)
	}

	if b.Mode == VotingModeTokenGated {
		if b.VoterToken == "" {
			return ErrMissingVoterToken
		}
		if _, voted := e.voters[b.VoterToken]; voted {
			return ErrDuplicateVote
		}
		e.voters[b.VoterToken] = struct{}{}
	}

	e.voteCount++
	e.votes[b.Candidate]++
	return nil
}

// Close stops further voting. It reports whether this call closed the election.
func (e *Election) Close() bool {
	if !e.state.CanTransitionTo(StateClosed) {
		return false
	}

	e.state = StateClosed
	e.ClosedAt = time.Now()
	return true
}

// FinalVotes returns the per-candidate tally, available only after closing
func (e *Election) FinalVotes() (map[string]int, bool) {
	if !e.IsClosed() {
		return nil, false
	}

	votes := make(map[string]int, len(e.votes))
	for c, n := range e.votes {
		votes[c] = n
	}
	return votes, true
}

// Summary returns the listing view of the election
func (e *Election) Summary() Summary {
	return Summary{
		ID:         e.ID,
		Title:      e.Title,
		Candidates: e.Candidates(),
		Closed:     e.IsClosed(),
	}
}

package domain

import "time"

// EventType represents the type of election event
type EventType string

const (
	EventElectionOpened    EventType = "ELECTION_OPENED"
	EventVoteCast          EventType = "VOTE_CAST"
	EventElectionClosed    EventType = "ELECTION_CLOSED"
	EventElectionDestroyed EventType = "ELECTION_DESTROYED"
)

// ElectionEvent represents a state change of an election
type ElectionEvent struct {
	Type       EventType   `json:"type"`
	ElectionID string      `json:"electionId"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewEvent creates a new election event
func NewEvent(eventType EventType, electionID string, payload interface{}) *ElectionEvent {
	return &ElectionEvent{
		Type:       eventType,
		ElectionID: electionID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// Payload types for different events

// OpenedPayload is sent when an election is opened
type OpenedPayload struct {
	Title      string   `json:"title"`
	Candidates []string `json:"candidates"`
}

// VoteCountPayload is sent when a ballot is accepted (without revealing the distribution)
type VoteCountPayload struct {
	VoteCount int `json:"voteCount"`
}

// FinalVotesPayload is sent when an election closes
type FinalVotesPayload struct {
	VoteCount  int            `json:"voteCount"`
	FinalVotes map[string]int `json:"finalVotes"`
}

package ws

import "time"

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgCastVote MessageType = "cast_vote"
	MsgPing     MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected         MessageType = "connected"
	MsgError             MessageType = "error"
	MsgVoteAccepted      MessageType = "vote_accepted"
	MsgVoteUpdate        MessageType = "vote_update"
	MsgElectionClosed    MessageType = "election_closed"
	MsgElectionDestroyed MessageType = "election_destroyed"
	MsgPong              MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// CastVotePayload is the payload for cast_vote message
type CastVotePayload struct {
	Candidate string `json:"candidate"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ClientID string      `json:"clientId"`
	Election interface{} `json:"election"`
}

// VoteUpdatePayload is the payload for vote_update message
type VoteUpdatePayload struct {
	ElectionID string `json:"electionId"`
	VoteCount  int    `json:"voteCount"`
}

// ElectionClosedPayload is the payload for election_closed message.
// Tallies are only filled in for admins.
type ElectionClosedPayload struct {
	ElectionID string         `json:"electionId"`
	VoteCount  *int           `json:"voteCount,omitempty"`
	FinalVotes map[string]int `json:"finalVotes,omitempty"`
}

// ElectionDestroyedPayload is the payload for election_destroyed message
type ElectionDestroyedPayload struct {
	ElectionID string `json:"electionId"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeUnknownCandidate = "UNKNOWN_CANDIDATE"
	ErrCodeAlreadyVoted     = "ALREADY_VOTED"
	ErrCodeElectionClosed   = "ELECTION_CLOSED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

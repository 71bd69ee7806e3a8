package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clubvote/internal/app"
	"clubvote/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Viewer identifies who is on the other end of a connection
type Viewer struct {
	VoterToken string
	Admin      bool
}

// Client represents a live-feed WebSocket connection
type Client struct {
	conn     *websocket.Conn
	session  *app.ElectionSession
	clientID string
	viewer   Viewer
	mode     domain.VotingMode
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, session *app.ElectionSession, clientID string, viewer Viewer, mode domain.VotingMode, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		session:  session,
		clientID: clientID,
		viewer:   viewer,
		mode:     mode,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// GetClientID implements app.ClientConnection interface
func (c *Client) GetClientID() string {
	return c.clientID
}

// Send implements app.ClientConnection interface. Election events are
// translated into feed messages for this viewer; anything else is sent as is.
// When the buffer is full a vote_update is dropped; any other message
// evicts the oldest queued one.
func (c *Client) Send(message interface{}) error {
	droppable := false
	if ev, ok := message.(*domain.ElectionEvent); ok {
		msg := feedMessage(ev, c.viewer.Admin)
		if msg == nil {
			return nil
		}
		droppable = msg.Type == MsgVoteUpdate
		message = msg
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
	}

	if droppable {
		c.logger.Debug("send buffer full, vote update dropped", "clientID", c.clientID)
		return nil
	}

	// Only Send writes to c.send and it holds c.mu, so a freed slot stays free
	select {
	case <-c.send:
		c.logger.Warn("send buffer full, oldest message evicted", "clientID", c.clientID)
	default:
	}
	c.send <- data
	return nil
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return nil
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.session.UnregisterClient(c.clientID)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
// Once the client is closed, queued messages are flushed before the close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write sends one message, batching whatever else is queued
func (c *Client) write(message []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(message)

	// Add queued messages to the current websocket message
	n := len(c.send)
	for i := 0; i < n; i++ {
		w.Write([]byte{'\n'})
		w.Write(<-c.send)
	}

	return w.Close()
}

func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgCastVote:
		c.handleCastVote(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleCastVote handles a cast_vote message
func (c *Client) handleCastVote(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	candidate, ok := payloadMap["candidate"].(string)
	if !ok || candidate == "" {
		c.sendError(ErrCodeInvalidMessage, "Candidate is required")
		return
	}

	err := c.session.Vote(domain.NewBallot(c.mode, candidate, c.viewer.VoterToken))
	switch {
	case err == nil:
		c.Send(NewServerMessage(MsgVoteAccepted, nil))
	case errors.Is(err, domain.ErrUnknownCandidate):
		c.sendError(ErrCodeUnknownCandidate, err.Error())
	case errors.Is(err, domain.ErrDuplicateVote):
		c.sendError(ErrCodeAlreadyVoted, "You have already voted")
	case errors.Is(err, domain.ErrAlreadyClosed):
		c.sendError(ErrCodeElectionClosed, "Election is closed")
	case errors.Is(err, domain.ErrMissingVoterToken):
		c.sendError(ErrCodeInvalidMessage, "A voter token is required")
	default:
		c.sendError(ErrCodeInternalError, err.Error())
	}
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	payload := &ConnectedPayload{
		ClientID: c.clientID,
		Election: c.session.Detail(c.viewer.VoterToken, c.viewer.Admin),
	}

	c.Send(NewServerMessage(MsgConnected, payload))
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	c.Send(NewServerMessage(MsgError, payload))
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	c.Send(NewServerMessage(MsgPong, nil))
}

// feedMessage translates an election event for a viewer.
// Non-admins never see counts or tallies; nil means nothing is sent.
func feedMessage(ev *domain.ElectionEvent, admin bool) *ServerMessage {
	switch ev.Type {
	case domain.EventVoteCast:
		p, ok := ev.Payload.(*domain.VoteCountPayload)
		if !ok || !admin {
			return nil
		}
		return NewServerMessage(MsgVoteUpdate, &VoteUpdatePayload{
			ElectionID: ev.ElectionID,
			VoteCount:  p.VoteCount,
		})
	case domain.EventElectionClosed:
		payload := &ElectionClosedPayload{ElectionID: ev.ElectionID}
		if p, ok := ev.Payload.(*domain.FinalVotesPayload); ok && admin {
			count := p.VoteCount
			payload.VoteCount = &count
			payload.FinalVotes = p.FinalVotes
		}
		return NewServerMessage(MsgElectionClosed, payload)
	case domain.EventElectionDestroyed:
		return NewServerMessage(MsgElectionDestroyed, &ElectionDestroyedPayload{
			ElectionID: ev.ElectionID,
		})
	default:
		return nil
	}
}

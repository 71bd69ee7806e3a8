package ws

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"clubvote/internal/app"
	"clubvote/internal/auth"
	"clubvote/internal/domain"
)

type feedConn struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []json.RawMessage
}

type received struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// next returns the next server message, splitting batched frames
func (f *feedConn) next() received {
	f.t.Helper()
	for len(f.pending) == 0 {
		f.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := f.conn.ReadMessage()
		require.NoError(f.t, err)
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			f.pending = append(f.pending, json.RawMessage(line))
		}
	}

	var msg received
	require.NoError(f.t, json.Unmarshal(f.pending[0], &msg))
	f.pending = f.pending[1:]
	return msg
}

func (f *feedConn) send(msgType MessageType, payload interface{}) {
	f.t.Helper()
	require.NoError(f.t, f.conn.WriteJSON(&ClientMessage{Type: msgType, Payload: payload}))
}

func setup(t *testing.T, user *auth.User) (*app.Registry, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := app.NewRegistry(logger)
	t.Cleanup(registry.Close)

	handler := NewHandler(registry, domain.VotingModeTokenGated, nil, logger)
	mux := http.NewServeMux()
	mux.Handle("GET /api/elections/{id}/live", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			r = r.WithContext(auth.WithUser(r.Context(), user))
		}
		handler.ServeHTTP(w, r)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return registry, srv
}

func dial(t *testing.T, srv *httptest.Server, electionID string) *feedConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/elections/" + electionID + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &feedConn{t: t, conn: conn}
}

func TestAdminFeed(t *testing.T) {
	require := require.New(t)
	registry, srv := setup(t, &auth.User{Username: "root", AuthLevel: auth.LevelAdmin})

	id, err := registry.Open("Best Snack", []string{"Mochi", "Dango"})
	require.NoError(err)
	session, _ := registry.Get(id)

	feed := dial(t, srv, id)
	msg := feed.next()
	require.Equal(MsgConnected, msg.Type)
	require.Eventually(func() bool { return session.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(session.Vote(domain.TokenBallot("Mochi", "alice")))
	msg = feed.next()
	require.Equal(MsgVoteUpdate, msg.Type)
	var update VoteUpdatePayload
	require.NoError(json.Unmarshal(msg.Payload, &update))
	require.Equal(1, update.VoteCount)

	session.Close()
	msg = feed.next()
	require.Equal(MsgElectionClosed, msg.Type)
	var closed ElectionClosedPayload
	require.NoError(json.Unmarshal(msg.Payload, &closed))
	require.Equal(map[string]int{"Mochi": 1, "Dango": 0}, closed.FinalVotes)

	require.NoError(registry.Destroy(id))
	msg = feed.next()
	require.Equal(MsgElectionDestroyed, msg.Type)
}

func TestVoterFeed(t *testing.T) {
	require := require.New(t)
	registry, srv := setup(t, &auth.User{Username: "alice", AuthLevel: auth.LevelUser})

	id, err := registry.Open("Best Snack", []string{"Mochi", "Dango"})
	require.NoError(err)
	session, _ := registry.Get(id)

	feed := dial(t, srv, id)
	require.Equal(MsgConnected, feed.next().Type)

	feed.send(MsgCastVote, &CastVotePayload{Candidate: "Mochi"})
	require.Equal(MsgVoteAccepted, feed.next().Type)

	feed.send(MsgCastVote, &CastVotePayload{Candidate: "Mochi"})
	msg := feed.next()
	require.Equal(MsgError, msg.Type)
	var errPayload ErrorPayload
	require.NoError(json.Unmarshal(msg.Payload, &errPayload))
	require.Equal(ErrCodeAlreadyVoted, errPayload.Code)

	feed.send(MsgCastVote, &CastVotePayload{Candidate: "Pocky"})
	msg = feed.next()
	require.Equal(MsgError, msg.Type)
	require.NoError(json.Unmarshal(msg.Payload, &errPayload))
	require.Equal(ErrCodeUnknownCandidate, errPayload.Code)

	// Voters get no running count
	feed.send(MsgPing, nil)
	require.Equal(MsgPong, feed.next().Type)
	require.Equal(1, session.VoteCount())

	session.Close()
	msg = feed.next()
	require.Equal(MsgElectionClosed, msg.Type)
	var closed ElectionClosedPayload
	require.NoError(json.Unmarshal(msg.Payload, &closed))
	require.Nil(closed.FinalVotes)
	require.Nil(closed.VoteCount)

	feed.send(MsgCastVote, &CastVotePayload{Candidate: "Dango"})
	msg = feed.next()
	require.NoError(json.Unmarshal(msg.Payload, &errPayload))
	require.Equal(ErrCodeElectionClosed, errPayload.Code)
}

func TestHandlerRejects(t *testing.T) {
	_, srv := setup(t, &auth.User{Username: "alice"})
	resp, err := http.Get(srv.URL + "/api/elections/missing/live")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, anon := setup(t, nil)
	resp, err = http.Get(anon.URL + "/api/elections/missing/live")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFeedMessage(t *testing.T) {
	ev := domain.NewEvent(domain.EventElectionOpened, "E1", nil)
	require.Nil(t, feedMessage(ev, true))

	ev = domain.NewEvent(domain.EventVoteCast, "E1", &domain.VoteCountPayload{VoteCount: 3})
	require.Nil(t, feedMessage(ev, false))
	msg := feedMessage(ev, true)
	require.Equal(t, MsgVoteUpdate, msg.Type)
	require.Equal(t, &VoteUpdatePayload{ElectionID: "E1", VoteCount: 3}, msg.Payload)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://club.example"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.True(t, check(r))
	r.Header.Set("Origin", "https://club.example")
	require.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example")
	require.False(t, check(r))

	require.True(t, originChecker(nil)(r))
}

func TestSendKeepsLifecycleMessages(t *testing.T) {
	require := require.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(nil, nil, "c1", Viewer{Admin: true}, domain.VotingModeOpen, logger)

	for i := 1; i <= sendBufferSize+50; i++ {
		require.NoError(client.Send(domain.NewEvent(domain.EventVoteCast, "E1", &domain.VoteCountPayload{VoteCount: i})))
	}
	require.Len(client.send, sendBufferSize)

	require.NoError(client.Send(domain.NewEvent(domain.EventElectionClosed, "E1", &domain.FinalVotesPayload{
		VoteCount:  sendBufferSize + 50,
		FinalVotes: map[string]int{"A": sendBufferSize + 50},
	})))
	require.Len(client.send, sendBufferSize)

	var last received
	for len(client.send) > 0 {
		require.NoError(json.Unmarshal(<-client.send, &last))
	}
	require.Equal(MsgElectionClosed, last.Type)
}

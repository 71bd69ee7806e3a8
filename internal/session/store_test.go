package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndLookup(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.Create(ctx, "alice")
	require.NoError(err)
	require.Len(sess.ID, 36)
	require.Equal("alice", sess.Username)

	got, err := s.Lookup(ctx, sess.ID)
	require.NoError(err)
	require.Equal(sess.ID, got.ID)
	require.Equal("alice", got.Username)
	require.Equal(sess.ExpiresAt.Unix(), got.ExpiresAt.Unix())

	other, err := s.Create(ctx, "alice")
	require.NoError(err)
	require.NotEqual(sess.ID, other.ID)

	_, err = s.Lookup(ctx, "missing")
	require.ErrorIs(err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.Create(ctx, "bob")
	require.NoError(err)

	require.NoError(s.Delete(ctx, sess.ID))
	_, err = s.Lookup(ctx, sess.ID)
	require.ErrorIs(err, ErrNotFound)

	require.NoError(s.Delete(ctx, sess.ID))
}

func TestExpiredSessions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	start := time.Now()
	s.now = func() time.Time { return start }

	expiring, err := s.Create(ctx, "alice")
	require.NoError(err)

	s.now = func() time.Time { return start.Add(30 * time.Minute) }
	fresh, err := s.Create(ctx, "bob")
	require.NoError(err)

	s.now = func() time.Time { return start.Add(61 * time.Minute) }
	_, err = s.Lookup(ctx, expiring.ID)
	require.ErrorIs(err, ErrNotFound)

	_, err = s.Lookup(ctx, fresh.ID)
	require.NoError(err)

	s.now = func() time.Time { return start.Add(2 * time.Hour) }
	n, err := s.PurgeExpired(ctx)
	require.NoError(err)
	require.Equal(int64(1), n)

	_, err = s.Lookup(ctx, fresh.ID)
	require.ErrorIs(err, ErrNotFound)
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSchema(context.Background()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", time.Hour)
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	require.Equal(t,
		`UPDATE t SET a = $1 WHERE b = $2`,
		pg.rebind(`UPDATE t SET a = ? WHERE b = ?`))

	lite := &Store{driver: "sqlite"}
	require.Equal(t, `SELECT ? `, lite.rebind(`SELECT ? `))
}

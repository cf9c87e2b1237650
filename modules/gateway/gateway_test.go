package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/events"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/realtime"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type mockAuth struct {
	validateFn func(ctx context.Context, token string) (*domain.Claims, error)
}

func (m *mockAuth) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	return m.validateFn(ctx, token)
}

type mockHistory struct {
	latest map[uint]uint
}

func (m *mockHistory) LatestMessageID(_ context.Context, roomID uint) (uint, error) {
	return m.latest[roomID], nil
}

var errSocketClosed = errors.New("socket closed")

// fakeSocket is an in-memory Socket. Frames sent by the client go through
// in; text frames written by the server arrive on out.
type fakeSocket struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}

	closeOnce     sync.Once
	closes        atomic.Int32
	pings         atomic.Int32
	readDeadlines atomic.Int32
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-s.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-s.closed:
		return 0, nil, errSocketClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-s.closed:
		return errSocketClosed
	default:
	}
	switch messageType {
	case websocket.TextMessage:
		s.out <- data
	case websocket.PingMessage:
		s.pings.Add(1)
	}
	return nil
}

func (s *fakeSocket) SetReadDeadline(time.Time) error {
	s.readDeadlines.Add(1)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error          { return nil }
func (s *fakeSocket) SetReadLimit(int64)                        {}
func (s *fakeSocket) SetPongHandler(func(appData string) error) {}

func (s *fakeSocket) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	s.in <- data
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *fakeSocket) next(t *testing.T) frame {
	t.Helper()
	select {
	case data := <-s.out:
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return frame{}
	}
}

func (s *fakeSocket) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case data := <-s.out:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	gateway  *Gateway
	registry *realtime.Registry
	bus      *realtime.Bus
}

func newHarness(pingInterval time.Duration) harness {
	registry := realtime.NewRegistry()
	auth := &mockAuth{validateFn: func(_ context.Context, token string) (*domain.Claims, error) {
		switch token {
		case "alice-token":
			return &domain.Claims{UserID: 1, Username: "alice"}, nil
		case "bob-token":
			return &domain.Claims{UserID: 2, Username: "bob"}, nil
		case "expired":
			return nil, &domain.AuthError{Message: "Token expired", Forbidden: true}
		}
		return nil, &domain.AuthError{Message: "Invalid token", Forbidden: true}
	}}
	history := &mockHistory{latest: map[uint]uint{1: 41}}
	cfg := config.RealtimeConfig{
		MailboxSize:  16,
		PingInterval: pingInterval,
		PongWait:     time.Minute,
		WriteWait:    time.Second,
	}
	return harness{
		gateway:  New(registry, auth, history, cfg, &mockLogger{}),
		registry: registry,
		bus:      realtime.NewBus(registry, &mockLogger{}),
	}
}

func (h harness) serve(ctx context.Context, sock *fakeSocket, token string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.gateway.Serve(ctx, sock, token)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestServe_TokenOnUpgrade(t *testing.T) {
	h := newHarness(time.Hour)
	sock := newFakeSocket()
	done := h.serve(context.Background(), sock, "alice-token")

	f := sock.next(t)
	assert.Equal(t, frameAuthenticated, f.Type)
	assert.JSONEq(t, `{"userId":1,"username":"alice"}`, string(f.Payload))

	sock.send(t, map[string]any{"type": "joinRoom", "roomId": 1})
	f = sock.next(t)
	assert.Equal(t, frameJoinedRoom, f.Type)
	assert.JSONEq(t, `{"roomId":1,"lastMessageId":41}`, string(f.Payload))
	assert.Equal(t, 1, h.registry.RoomMemberCount(1))

	h.bus.Publish(events.MessageDeleted{MessageID: 9, Room: 1})
	f = sock.next(t)
	assert.Equal(t, events.TypeMessageDeleted, f.Type)

	sock.send(t, map[string]any{"type": "leaveRoom", "roomId": "1"})
	require.Eventually(t, func() bool { return h.registry.RoomMemberCount(1) == 0 }, time.Second, 5*time.Millisecond)

	h.bus.Publish(events.MessageDeleted{MessageID: 10, Room: 1})
	sock.expectSilence(t)

	close(sock.in)
	waitDone(t, done)
	assert.Zero(t, h.registry.ConnectionCount())
}

func TestServe_AuthenticateFrame(t *testing.T) {
	h := newHarness(time.Hour)
	sock := newFakeSocket()
	done := h.serve(context.Background(), sock, "")

	sock.send(t, map[string]any{"type": "joinRoom", "roomId": 1})
	f := sock.next(t)
	assert.Equal(t, frameError, f.Type)
	assert.JSONEq(t, `{"message":"Authentication required"}`, string(f.Payload))
	assert.Zero(t, h.registry.RoomCount(), "commands before authentication have no effect")

	sock.send(t, map[string]any{"type": "authenticate", "token": "bob-token"})
	f = sock.next(t)
	assert.Equal(t, frameAuthenticated, f.Type)
	assert.JSONEq(t, `{"userId":2,"username":"bob"}`, string(f.Payload))

	close(sock.in)
	waitDone(t, done)
}

func TestServe_UnauthenticatedSocketIsClosedAfterRejectedFrames(t *testing.T) {
	h := newHarness(time.Hour)
	sock := newFakeSocket()
	done := h.serve(context.Background(), sock, "")

	sock.in <- []byte("not json")
	sock.send(t, map[string]any{"type": "ping"})
	sock.send(t, map[string]any{"type": "authenticate"})

	for _, want := range []string{"Invalid message format", "Authentication required", "Token required"} {
		f := sock.next(t)
		assert.Equal(t, frameError, f.Type)
		assert.JSONEq(t, `{"message":"`+want+`"}`, string(f.Payload))
	}

	waitDone(t, done)
	assert.Positive(t, sock.closes.Load())
	assert.EqualValues(t, 1, sock.readDeadlines.Load(), "the handshake deadline is not extended per frame")
	assert.Zero(t, h.registry.ConnectionCount())
}

func TestServe_InvalidTokenClosesSocket(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		frame   any
		message string
	}{
		{name: "upgrade token", token: "garbage", message: "Invalid token"},
		{name: "expired upgrade token", token: "expired", message: "Token expired"},
		{name: "authenticate frame", frame: map[string]any{"type": "authenticate", "token": "nope"}, message: "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(time.Hour)
			sock := newFakeSocket()
			done := h.serve(context.Background(), sock, tt.token)
			if tt.frame != nil {
				sock.send(t, tt.frame)
			}

			f := sock.next(t)
			assert.Equal(t, frameError, f.Type)
			assert.JSONEq(t, `{"message":"`+tt.message+`"}`, string(f.Payload))

			waitDone(t, done)
			assert.Positive(t, sock.closes.Load())
			assert.Zero(t, h.registry.ConnectionCount())
		})
	}
}

func TestServe_Commands(t *testing.T) {
	h := newHarness(time.Hour)
	sock := newFakeSocket()
	done := h.serve(context.Background(), sock, "alice-token")
	require.Equal(t, frameAuthenticated, sock.next(t).Type)

	sock.send(t, map[string]any{"type": "ping"})
	assert.Equal(t, framePong, sock.next(t).Type)

	sock.send(t, map[string]any{"type": "dance"})
	f := sock.next(t)
	assert.Equal(t, frameError, f.Type)
	assert.JSONEq(t, `{"message":"Unknown message type: dance"}`, string(f.Payload))

	sock.in <- []byte("{not json")
	assert.Equal(t, frameError, sock.next(t).Type)

	sock.send(t, map[string]any{"type": "joinRoom", "roomId": "abc"})
	f = sock.next(t)
	assert.JSONEq(t, `{"message":"Invalid room id"}`, string(f.Payload))

	sock.send(t, map[string]any{"type": "joinRoom"})
	f = sock.next(t)
	assert.JSONEq(t, `{"message":"roomId is required"}`, string(f.Payload))

	sock.send(t, map[string]any{"type": "leaveRoom", "roomId": 5})
	sock.expectSilence(t)

	sock.send(t, map[string]any{"type": "joinRoom", "roomId": "2"})
	f = sock.next(t)
	assert.Equal(t, frameJoinedRoom, f.Type)
	assert.JSONEq(t, `{"roomId":2,"lastMessageId":0}`, string(f.Payload))

	close(sock.in)
	waitDone(t, done)
}

func TestServe_RoomIsolation(t *testing.T) {
	h := newHarness(time.Hour)
	ctx := context.Background()

	alice := newFakeSocket()
	bob := newFakeSocket()
	aliceDone := h.serve(ctx, alice, "alice-token")
	bobDone := h.serve(ctx, bob, "bob-token")
	require.Equal(t, frameAuthenticated, alice.next(t).Type)
	require.Equal(t, frameAuthenticated, bob.next(t).Type)

	alice.send(t, map[string]any{"type": "joinRoom", "roomId": 1})
	require.Equal(t, frameJoinedRoom, alice.next(t).Type)

	h.bus.Publish(events.MessageDeleted{MessageID: 1, Room: 1})
	assert.Equal(t, events.TypeMessageDeleted, alice.next(t).Type)
	bob.expectSilence(t)

	close(alice.in)
	close(bob.in)
	waitDone(t, aliceDone)
	waitDone(t, bobDone)
}

func TestServe_ShutdownEndsSessions(t *testing.T) {
	h := newHarness(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	sock := newFakeSocket()
	done := h.serve(ctx, sock, "alice-token")
	require.Equal(t, frameAuthenticated, sock.next(t).Type)
	sock.send(t, map[string]any{"type": "joinRoom", "roomId": 1})
	require.Equal(t, frameJoinedRoom, sock.next(t).Type)

	cancel()
	waitDone(t, done)
	assert.Zero(t, h.registry.ConnectionCount())
	assert.Zero(t, h.registry.RoomCount())
}

func TestServe_RegistryCloseEndsSession(t *testing.T) {
	h := newHarness(time.Hour)
	sock := newFakeSocket()
	done := h.serve(context.Background(), sock, "alice-token")
	require.Equal(t, frameAuthenticated, sock.next(t).Type)

	assert.Equal(t, 1, h.registry.CloseAll())
	waitDone(t, done)
	assert.Zero(t, h.registry.ConnectionCount())
}

func TestServe_SendsPings(t *testing.T) {
	h := newHarness(10 * time.Millisecond)
	sock := newFakeSocket()
	done := h.serve(context.Background(), sock, "alice-token")
	require.Equal(t, frameAuthenticated, sock.next(t).Type)

	require.Eventually(t, func() bool { return sock.pings.Load() >= 2 }, time.Second, 5*time.Millisecond)

	close(sock.in)
	waitDone(t, done)
}

func TestSession_RemoveRunsOnce(t *testing.T) {
	h := newHarness(time.Hour)
	conn := realtime.NewConn(1, "alice", 4)
	h.registry.Join(conn, 1)
	h.registry.Join(conn, 2)

	s := &session{gateway: h.gateway, sock: newFakeSocket(), conn: conn}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.remove()
		}()
	}
	wg.Wait()

	assert.True(t, conn.Closed())
	assert.Zero(t, h.registry.RoomCount())
}

func TestRoomID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    RoomID
		wantErr bool
	}{
		{in: `7`, want: 7},
		{in: `"7"`, want: 7},
		{in: `null`, want: 0},
		{in: `"x"`, wantErr: true},
		{in: `-1`, wantErr: true},
		{in: `1.5`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var id RoomID
			err := id.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidRoomID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer "))
	assert.Empty(t, bearerToken(""))
}

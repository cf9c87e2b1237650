// Package gateway runs websocket sessions: authentication, room membership
// commands, and draining each connection's mailbox to the wire.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/events"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/realtime"
)

const (
	maxFrameSize = 64 * 1024

	// maxAuthFailures is how many rejected frames an unauthenticated
	// socket may send before it is closed.
	maxAuthFailures = 3
)

// Socket is the subset of a websocket connection a session needs.
// *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Authenticator validates bearer tokens.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
}

// History reports the newest message id in a room.
type History interface {
	LatestMessageID(ctx context.Context, roomID uint) (uint, error)
}

// Gateway accepts websocket sessions and binds them to the room registry.
type Gateway struct {
	registry *realtime.Registry
	auth     Authenticator
	history  History
	cfg      config.RealtimeConfig
	logger   types.Logger
}

// New creates a Gateway.
func New(registry *realtime.Registry, auth Authenticator, history History, cfg config.RealtimeConfig, logger types.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		auth:     auth,
		history:  history,
		cfg:      cfg,
		logger:   logger,
	}
}

// Serve runs one session until the client goes away, a write fails, the
// connection is closed by the registry, or ctx is cancelled. token may be
// empty, in which case the first frame must authenticate.
func (g *Gateway) Serve(ctx context.Context, sock Socket, token string) {
	sock.SetReadLimit(maxFrameSize)

	claims, ok := g.authenticate(ctx, sock, token)
	if !ok {
		_ = sock.Close()
		return
	}

	s := &session{
		gateway: g,
		sock:    sock,
		conn:    realtime.NewConn(claims.UserID, claims.Username, g.cfg.MailboxSize),
	}
	defer s.remove()

	if !g.registry.Register(s.conn) {
		_ = sock.Close()
		return
	}
	s.reply(frameAuthenticated, authenticatedPayload{UserID: claims.UserID, Username: claims.Username})
	g.logger.Info("WebSocket connected", "conn", s.conn.ID, "userID", claims.UserID)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.writeLoop(gctx) })
	group.Go(func() error { return s.readLoop(gctx) })

	if err := group.Wait(); err != nil {
		g.logger.Debug("WebSocket session ended", "conn", s.conn.ID, "error", err)
	}
	g.logger.Info("WebSocket disconnected", "conn", s.conn.ID, "userID", claims.UserID)
}

// authenticate validates the upgrade token or waits for an authenticate frame.
// The whole handshake shares one read deadline, and the socket is given up
// after maxAuthFailures rejected frames.
// It runs before the writer exists, so it writes to the socket directly.
func (g *Gateway) authenticate(ctx context.Context, sock Socket, token string) (*domain.Claims, bool) {
	_ = sock.SetReadDeadline(time.Now().Add(g.cfg.PongWait))

	failures := 0
	for token == "" {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return nil, false
		}

		var cmd command
		var message string
		switch {
		case json.Unmarshal(data, &cmd) != nil:
			message = "Invalid message format"
		case cmd.Type != cmdAuthenticate:
			message = "Authentication required"
		case cmd.Token == "":
			message = "Token required"
		default:
			token = cmd.Token
			continue
		}

		g.writeDirect(sock, frameError, errorPayload{Message: message})
		failures++
		if failures >= maxAuthFailures {
			return nil, false
		}
	}

	claims, err := g.auth.ValidateToken(ctx, token)
	if err != nil {
		message := "Invalid token"
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			message = authErr.Message
		}
		g.writeDirect(sock, frameError, errorPayload{Message: message})
		return nil, false
	}
	return claims, true
}

func (g *Gateway) writeDirect(sock Socket, frameType string, payload any) {
	data, err := json.Marshal(events.Frame{Type: frameType, Payload: payload})
	if err != nil {
		return
	}
	_ = sock.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		g.logger.Debug("Failed to write frame", "type", frameType, "error", err)
	}
}

// session is one authenticated connection.
type session struct {
	gateway    *Gateway
	sock       Socket
	conn       *realtime.Conn
	removeOnce sync.Once
}

// remove detaches the connection from every room. Only the first call has
// any effect, whichever side of the session ends first.
func (s *session) remove() {
	s.removeOnce.Do(func() {
		s.conn.Close()
		rooms := s.gateway.registry.RemoveConnection(s.conn)
		if len(rooms) > 0 {
			s.gateway.logger.Debug("Connection left rooms", "conn", s.conn.ID, "rooms", rooms)
		}
	})
}

func (s *session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.gateway.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.sock.Close()
	}()

	for {
		select {
		case frame := <-s.conn.Mailbox():
			if err := s.write(websocket.TextMessage, frame); err != nil {
				s.remove()
				return err
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.remove()
				return err
			}
		case <-s.conn.Done():
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return nil
		case <-ctx.Done():
			s.remove()
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return nil
		}
	}
}

func (s *session) write(messageType int, data []byte) error {
	_ = s.sock.SetWriteDeadline(time.Now().Add(s.gateway.cfg.WriteWait))
	return s.sock.WriteMessage(messageType, data)
}

func (s *session) readLoop(ctx context.Context) error {
	defer s.remove()

	pongWait := s.gateway.cfg.PongWait
	_ = s.sock.SetReadDeadline(time.Now().Add(pongWait))
	s.sock.SetPongHandler(func(string) error {
		return s.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.sock.ReadMessage()
		if err != nil {
			if s.conn.Closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		_ = s.sock.SetReadDeadline(time.Now().Add(pongWait))
		s.handle(ctx, data)
	}
}

func (s *session) handle(ctx context.Context, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		if errors.Is(err, errInvalidRoomID) {
			s.replyError("Invalid room id")
			return
		}
		s.replyError("Invalid message format")
		return
	}

	switch cmd.Type {
	case cmdJoinRoom:
		s.joinRoom(ctx, uint(cmd.RoomID))
	case cmdLeaveRoom:
		if cmd.RoomID == 0 {
			s.replyError("roomId is required")
			return
		}
		s.gateway.registry.Leave(s.conn, uint(cmd.RoomID))
	case cmdPing:
		s.reply(framePong, nil)
	case cmdAuthenticate:
		s.replyError("Already authenticated")
	default:
		s.replyError("Unknown message type: " + cmd.Type)
	}
}

// joinRoom adds the connection to the room, then reports the newest message
// id so the client can backfill anything it missed before the join.
func (s *session) joinRoom(ctx context.Context, roomID uint) {
	if roomID == 0 {
		s.replyError("roomId is required")
		return
	}
	s.gateway.registry.Join(s.conn, roomID)

	latest, err := s.gateway.history.LatestMessageID(ctx, roomID)
	if err != nil {
		s.gateway.logger.Warn("Failed to read latest message id", "room", roomID, "error", err)
	}
	s.reply(frameJoinedRoom, joinedRoomPayload{RoomID: roomID, LastMessageID: latest})
}

func (s *session) reply(frameType string, payload any) {
	data, err := json.Marshal(events.Frame{Type: frameType, Payload: payload})
	if err != nil {
		s.gateway.logger.Error("Failed to encode frame", "type", frameType, "error", err)
		return
	}
	if !s.conn.Offer(data) && !s.conn.Closed() {
		s.gateway.logger.Warn("Dropped reply for slow connection", "type", frameType, "conn", s.conn.ID)
	}
}

func (s *session) replyError(message string) {
	s.reply(frameError, errorPayload{Message: message})
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

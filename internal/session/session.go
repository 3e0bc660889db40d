// Package session implements the connection lifecycle: handshake and
// bootstrap (§4.4), the steady-state dispatch loop (§4.5), and teardown
// (§4.6). One Session is created per accepted TLS connection.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"mumbled/internal/auth"
	"mumbled/internal/mumbleproto"
	"mumbled/internal/presence"
	"mumbled/internal/store"
	"mumbled/internal/wire"
)

// writeTimeout bounds how long one outbound write may block the
// connection; a slow TCP peer must not stall the dispatch loop forever.
const writeTimeout = 10 * time.Second

// HistoryLimit is how many past messages are replayed on join or channel
// move (spec §4.4 step 8, §4.5.3 note 1).
const HistoryLimit = 50

// MaxBandwidth is the value advertised in ServerSync (spec §4.4 step 7).
const MaxBandwidth = 128000

// ServerVersion is what this server reports in its own Version message.
// Encodes 1.3.0 using the legacy (major<<16 | minor<<8 | patch) scheme.
const ServerVersion = 1<<16 | 3<<8

// ErrProtocolViolation marks a fatal, no-notification session error (spec
// §7 "Protocol violation").
var ErrProtocolViolation = errors.New("session: protocol violation")

// Session is one authenticated connection's runtime state.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	dec    *wire.Decoder

	presenceStore *presence.Store
	db            *store.Store
	limiter       *rate.Limiter
	welcomeText   string

	Peer         *presence.Peer
	log          *slog.Logger
	teardownOnce sync.Once
}

// New wraps an accepted connection. Call Bootstrap then Run.
func New(conn net.Conn, presenceStore *presence.Store, db *store.Store, rateLimit int, welcomeText string) *Session {
	burst := rateLimit
	if burst <= 0 {
		burst = 1
	}
	return &Session{
		conn:          conn,
		reader:        bufio.NewReader(conn),
		dec:           wire.NewDecoder(),
		presenceStore: presenceStore,
		db:            db,
		limiter:       rate.NewLimiter(rate.Limit(rateLimit), burst),
		welcomeText:   welcomeText,
		log:           slog.With("remote", conn.RemoteAddr().String(), "trace_id", uuid.NewString()),
	}
}

func (s *Session) readFrame() (wire.Frame, error) {
	for {
		f, err := s.dec.Decode()
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, wire.ErrShortBuffer) {
			return wire.Frame{}, err
		}
		buf := make([]byte, 4096)
		n, rerr := s.reader.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
		}
		if rerr != nil {
			return wire.Frame{}, rerr
		}
	}
}

func (s *Session) writeMessage(msg any) error {
	frame := mumbleproto.Encode(msg)
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write(wire.Encode(frame.Type, frame.Payload))
	return err
}

// readTyped reads exactly one frame and decodes it, requiring it to be of
// the expected Go type.
func readTyped[T any](s *Session) (T, error) {
	var zero T
	f, err := s.readFrame()
	if err != nil {
		return zero, err
	}
	decoded, err := mumbleproto.Decode(f)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	typed, ok := decoded.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrProtocolViolation, zero, decoded)
	}
	return typed, nil
}

// Bootstrap runs the handshake and session setup of spec §4.4, ending with
// the peer inserted into the presence store and the welcome sequence sent.
func (s *Session) Bootstrap(ctx context.Context, gateway *auth.Gateway) error {
	version, err := readTyped[*mumbleproto.Version](s)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	v := uint32(0)
	if version.Version != nil {
		v = *version.Version
	}
	s.log.Info("client version", "version", v)

	authMsg, err := readTyped[*mumbleproto.Authenticate](s)
	if err != nil {
		return fmt.Errorf("read authenticate: %w", err)
	}

	decision, err := gateway.Authenticate(ctx, authMsg.Username, authMsg.Password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if !decision.Accepted {
		rt := mumbleproto.RejectWrongUserPW
		_ = s.writeMessage(&mumbleproto.Reject{Type: &rt, Reason: &decision.Reason})
		return fmt.Errorf("authentication rejected: %s", decision.Reason)
	}

	sessionID := s.presenceStore.AllocateSessionID()
	s.Peer = &presence.Peer{
		SessionID: sessionID,
		Username:  decision.Username,
		ChannelID: 0,
	}

	s.presenceStore.InsertPeer(s.Peer)

	// Exchange roster notifications: the newcomer learns about every
	// existing peer, and every existing peer learns about the newcomer
	// (spec §4.4 step 3; handler.rs does the same pairwise exchange).

	for _, existing := range s.presenceStore.ListPeers() {
		if existing.SessionID == s.Peer.SessionID {
			continue
		}
		snap, ok := s.presenceStore.GetPeerSnapshot(existing.SessionID)
		if !ok {
			continue
		}
		presence.TrySend(s.Peer, &mumbleproto.UserState{
			Session:   &snap.SessionID,
			Name:      &snap.Username,
			ChannelID: &snap.ChannelID,
			SelfMute:  &snap.SelfMute,
			SelfDeaf:  &snap.SelfDeaf,
		})
		newcomerSession := s.Peer.SessionID
		newcomerName := s.Peer.Username
		newcomerChannel := s.Peer.ChannelID
		presence.TrySend(existing, &mumbleproto.UserState{
			Session:   &newcomerSession,
			Name:      &newcomerName,
			ChannelID: &newcomerChannel,
		})
	}

	serverVersion := uint32(ServerVersion)
	if err := s.writeMessage(&mumbleproto.Version{Version: &serverVersion}); err != nil {
		return fmt.Errorf("write version: %w", err)
	}

	for _, c := range s.presenceStore.ListChannelsSorted() {
		if err := s.writeMessage(&mumbleproto.ChannelState{
			ChannelID:   &c.ChannelID,
			Parent:      c.ParentID,
			Name:        &c.Name,
			Description: c.Description,
		}); err != nil {
			return fmt.Errorf("write channel state: %w", err)
		}
	}

	selfChannel := s.Peer.ChannelID
	selfUserID := s.Peer.SessionID
	if err := s.writeMessage(&mumbleproto.UserState{
		Session:   &s.Peer.SessionID,
		Name:      &s.Peer.Username,
		UserID:    &selfUserID,
		ChannelID: &selfChannel,
	}); err != nil {
		return fmt.Errorf("write self user state: %w", err)
	}

	maxBW := uint32(MaxBandwidth)
	welcome := s.welcomeText
	if err := s.writeMessage(&mumbleproto.ServerSync{
		Session:      &s.Peer.SessionID,
		MaxBandwidth: &maxBW,
		WelcomeText:  &welcome,
	}); err != nil {
		return fmt.Errorf("write server sync: %w", err)
	}

	if err := s.sendHistory(ctx, 0); err != nil {
		// Transient store failure during history fetch: skip, continue (§7).
		s.log.Warn("history fetch failed", "err", err)
	}

	return nil
}

// sendHistory fetches and replays the most recent persisted messages for
// channelID, formatted per spec §4.4 step 8.
func (s *Session) sendHistory(ctx context.Context, channelID uint32) error {
	msgs, err := s.db.RecentMessages(ctx, channelID, HistoryLimit)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		body := fmt.Sprintf("[History] %s: %s", m.SenderName, m.Content)
		sess := s.Peer.SessionID
		tm := &mumbleproto.TextMessage{
			Message: &body,
			Session: []uint32{sess},
		}
		if m.CreatedAt != nil {
			ts := uint64(m.CreatedAt.Unix())
			tm.Timestamp = &ts
		}
		presence.TrySend(s.Peer, tm)
	}
	return nil
}


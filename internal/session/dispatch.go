package session

import (
	"context"
	"fmt"
	"time"

	"mumbled/internal/mumbleproto"
	"mumbled/internal/presence"
	"mumbled/internal/routing"
	"mumbled/internal/wire"
)

// Run executes the steady-state dispatch loop (spec §4.5): an outbound
// drain goroutine and the inbound read-and-route loop run concurrently,
// sharing the connection. Returns once both have stopped; teardown (§4.6)
// has already run exactly once by the time Run returns.
func (s *Session) Run(ctx context.Context) {
	outboundDone := make(chan struct{})
	go s.drainOutbound(outboundDone)

	s.inboundLoop(ctx)

	s.teardown("inbound loop ended")
	<-outboundDone
}

// drainOutbound takes messages one at a time off the peer's outbound queue
// and writes them to the wire, in enqueue order. A write error is fatal to
// the session; it triggers teardown, which in turn closes this same queue
// so the range loop below terminates.
func (s *Session) drainOutbound(done chan<- struct{}) {
	defer close(done)
	for msg := range s.Peer.Outbound() {
		if err := s.writeMessage(msg); err != nil {
			s.log.Debug("outbound write failed", "err", err)
			s.teardown("write error")
			// Drain whatever remains so this goroutine still exits once
			// teardown closes the channel, without attempting more writes.
			for range s.Peer.Outbound() {
			}
			return
		}
	}
}

// inboundLoop decodes one frame at a time and routes it, until a read or
// decode error ends the session.
func (s *Session) inboundLoop(ctx context.Context) {
	for {
		f, err := s.readFrame()
		if err != nil {
			s.log.Debug("inbound read ended", "err", err)
			return
		}
		if !f.Type.Valid() {
			continue // unknown type: silently dropped (§4.1)
		}
		if !s.limiter.Allow() {
			s.log.Debug("inbound rate limit exceeded, dropping message", "type", f.Type)
			continue
		}

		msg, err := mumbleproto.Decode(f)
		if err != nil {
			s.log.Debug("malformed payload, closing session", "err", err)
			return
		}
		s.route(msg)
	}
}

// route implements the routing table of spec §4.5.
func (s *Session) route(msg any) {
	switch m := msg.(type) {
	case *mumbleproto.Ping:
		presence.TrySend(s.Peer, m)
	case *mumbleproto.Raw:
		if m.Type == wire.TypeUDPTunnel {
			s.routeVoice(m)
		}
		// any other opaque type: drop silently
	case *mumbleproto.TextMessage:
		s.routeChat(m)
	case *mumbleproto.UserState:
		s.routePresence(m)
	default:
		// drop silently
	}
}

// routeVoice implements §4.5.1.
func (s *Session) routeVoice(tunnel *mumbleproto.Raw) {
	recipients := routing.VoiceRoute(s.presenceStore, s.Peer.SessionID)
	for _, p := range recipients {
		presence.TrySend(p, &mumbleproto.Raw{Type: wire.TypeUDPTunnel, Payload: tunnel.Payload})
	}
}

// routeChat implements §4.5.2, including the /echo command and the
// channel-scoped (not global) broadcast and persistence.
func (s *Session) routeChat(tm *mumbleproto.TextMessage) {
	body := ""
	if tm.Message != nil {
		body = *tm.Message
	}

	result := routing.ChatRouteApply(s.presenceStore, s.Peer.SessionID, body)
	if !result.SenderFound {
		return
	}

	if result.IsEchoCommand {
		status := "OFF"
		if result.EchoEnabled {
			status = "ON"
		}
		reply := fmt.Sprintf("Echo mode: %s", status)
		sess := s.Peer.SessionID
		presence.TrySend(s.Peer, &mumbleproto.TextMessage{Message: &reply, Session: []uint32{sess}})
		return
	}

	ts := tm.Timestamp
	if ts == nil {
		now := uint64(time.Now().Unix())
		ts = &now
	}
	actor := s.Peer.SessionID
	out := &mumbleproto.TextMessage{Actor: &actor, Message: tm.Message, Timestamp: ts}
	for _, p := range result.Recipients {
		presence.TrySend(p, out)
	}

	channelID := result.ChannelID
	senderName := result.SenderUsername
	go func() {
		if err := s.db.SaveMessage(context.Background(), senderName, channelID, body); err != nil {
			s.log.Warn("save message failed", "err", err)
		}
	}()
}

// routePresence implements §4.5.3.
func (s *Session) routePresence(us *mumbleproto.UserState) {
	result := routing.PresenceRouteApply(s.presenceStore, s.Peer.SessionID, us.ChannelID, us.SelfMute, us.SelfDeaf)
	if !result.SenderFound {
		return
	}

	if result.ChannelMoved {
		sess := s.Peer.SessionID
		ch := result.NewChannelID
		delta := &mumbleproto.UserState{Session: &sess, ChannelID: &ch}
		for _, p := range result.Recipients {
			presence.TrySend(p, delta)
		}
		go func(channelID uint32) {
			if err := s.sendHistory(context.Background(), channelID); err != nil {
				s.log.Warn("history fetch after channel move failed", "err", err)
			}
		}(result.NewChannelID)
	}

	if result.MuteDeafChanged {
		sess := s.Peer.SessionID
		delta := &mumbleproto.UserState{Session: &sess}
		if result.SelfMute != nil {
			delta.SelfMute = result.SelfMute
		}
		if result.SelfDeaf != nil {
			delta.SelfDeaf = result.SelfDeaf
		}
		for _, p := range result.Recipients {
			presence.TrySend(p, delta)
		}
	}
}

// teardown implements §4.6. Idempotent: only the first caller (whichever
// of the inbound loop or the outbound writer notices the fatal condition
// first) does any work.
func (s *Session) teardown(reason string) {
	s.teardownOnce.Do(func() {
		s.log.Info("session closing", "reason", reason)
		departed, ok := s.presenceStore.RemovePeer(s.Peer.SessionID)
		if ok {
			removedID := departed.SessionID
			for _, p := range s.presenceStore.ListPeers() {
				presence.TrySend(p, &mumbleproto.UserRemove{Session: &removedID})
			}
			presence.ClosePeerQueue(departed)
		}
		_ = s.conn.Close()
	})
}

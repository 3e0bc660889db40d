package routing

import (
	"testing"

	"mumbled/internal/presence"
)

func addPeer(st *presence.Store, id uint32, channel uint32) *presence.Peer {
	p := &presence.Peer{SessionID: id, Username: "user", ChannelID: channel}
	st.InsertPeer(p)
	return p
}

func hasPeer(peers []*presence.Peer, id uint32) bool {
	for _, p := range peers {
		if p.SessionID == id {
			return true
		}
	}
	return false
}

// Scenario 4: voice fan-out and self-mute.
func TestVoiceRouteFanOutAndSelfMute(t *testing.T) {
	st := presence.NewStore()
	a := addPeer(st, 1, 7)
	a.EchoEnabled = true
	addPeer(st, 2, 7)
	addPeer(st, 3, 8)

	recipients := VoiceRoute(st, 1)
	if !hasPeer(recipients, 1) {
		t.Fatal("sender should receive echo")
	}
	if !hasPeer(recipients, 2) {
		t.Fatal("same-channel peer should receive voice")
	}
	if hasPeer(recipients, 3) {
		t.Fatal("different-channel peer should not receive voice")
	}

	st.WithPeer(1, func(p *presence.Peer) { p.SelfMute = true })
	recipients = VoiceRoute(st, 1)
	if len(recipients) != 0 {
		t.Fatalf("muted sender should have no recipients, got %d", len(recipients))
	}
}

func TestVoiceRouteDeafenedSenderMuted(t *testing.T) {
	st := presence.NewStore()
	a := addPeer(st, 1, 7)
	a.SelfDeaf = true
	addPeer(st, 2, 7)

	if recipients := VoiceRoute(st, 1); len(recipients) != 0 {
		t.Fatalf("deafened sender should have no recipients, got %d", len(recipients))
	}
}

// Scenario 2: echo toggle.
func TestChatRouteEchoToggleProducesNoBroadcast(t *testing.T) {
	st := presence.NewStore()
	addPeer(st, 1, 0)

	result := ChatRouteApply(st, 1, "/echo")
	if !result.IsEchoCommand {
		t.Fatal("expected an echo command")
	}
	if !result.EchoEnabled {
		t.Fatal("expected echo_enabled to become true")
	}
	if len(result.Recipients) != 0 {
		t.Fatalf("echo command must not broadcast, got %d recipients", len(result.Recipients))
	}

	snap, _ := st.GetPeerSnapshot(1)
	if !snap.EchoEnabled {
		t.Fatal("peer's echo_enabled was not persisted")
	}
}

// Scenario 3: channel-scoped chat.
func TestChatRouteScopedToSenderChannel(t *testing.T) {
	st := presence.NewStore()
	addPeer(st, 1, 0) // A
	addPeer(st, 2, 0) // B
	addPeer(st, 3, 1) // C

	result := ChatRouteApply(st, 1, "hi")
	if result.IsEchoCommand {
		t.Fatal("plain message must not be treated as a command")
	}
	if !hasPeer(result.Recipients, 1) || !hasPeer(result.Recipients, 2) {
		t.Fatal("A and B (same channel) must both receive the message")
	}
	if hasPeer(result.Recipients, 3) {
		t.Fatal("C (different channel) must not receive the message")
	}
	if result.ChannelID != 0 {
		t.Fatalf("got channel %d, want 0", result.ChannelID)
	}
}

// Scenario 5: deaf implies mute.
func TestPresenceRouteDeafForcesMute(t *testing.T) {
	st := presence.NewStore()
	addPeer(st, 1, 0)
	addPeer(st, 2, 0)

	deaf := true
	result := PresenceRouteApply(st, 1, nil, nil, &deaf)

	if !result.MuteDeafChanged {
		t.Fatal("expected a mute/deaf delta")
	}
	if result.SelfDeaf == nil || !*result.SelfDeaf {
		t.Fatal("expected self_deaf=true in the delta")
	}
	if result.SelfMute == nil || !*result.SelfMute {
		t.Fatal("expected self_mute forced true in the delta")
	}
	if !hasPeer(result.Recipients, 1) || !hasPeer(result.Recipients, 2) {
		t.Fatal("delta must broadcast to every peer including the sender")
	}

	snap, _ := st.GetPeerSnapshot(1)
	if !snap.SelfMute || !snap.SelfDeaf {
		t.Fatalf("peer record not updated: %+v", snap)
	}
}

func TestPresenceRouteChannelMove(t *testing.T) {
	st := presence.NewStore()
	addPeer(st, 1, 0)
	addPeer(st, 2, 0)

	target := uint32(7)
	result := PresenceRouteApply(st, 1, &target, nil, nil)

	if !result.ChannelMoved || result.NewChannelID != 7 {
		t.Fatalf("got %+v, want a move to channel 7", result)
	}
	snap, _ := st.GetPeerSnapshot(1)
	if snap.ChannelID != 7 {
		t.Fatalf("peer channel not updated: got %d", snap.ChannelID)
	}
}

func TestPresenceRouteUnknownSender(t *testing.T) {
	st := presence.NewStore()
	target := uint32(3)
	result := PresenceRouteApply(st, 99, &target, nil, nil)
	if result.SenderFound {
		t.Fatal("expected SenderFound=false for an unknown session")
	}
}

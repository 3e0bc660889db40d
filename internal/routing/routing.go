// Package routing implements the pure routing rules that decide, per
// incoming message, which peers receive what: voice fan-out, chat fan-out,
// and presence-delta fan-out. Each function runs entirely under the
// presence store's lock and returns recipient lists and state-mutation
// results for the caller to act on outside the lock.
package routing

import (
	"strings"

	"mumbled/internal/presence"
)

// VoiceRoute computes the recipients for a sender's UDPTunnel payload.
// Grounded on voice_router.rs: a muted or deafened sender transmits to no
// one; otherwise the recipients are every peer sharing the sender's
// channel, plus the sender itself when echo is enabled.
func VoiceRoute(st *presence.Store, senderID uint32) []*presence.Peer {
	var recipients []*presence.Peer
	st.Compute(func(peers map[uint32]*presence.Peer, _ map[uint32]*presence.Channel) {
		sender, ok := peers[senderID]
		if !ok || sender.SelfMute || sender.SelfDeaf {
			return
		}
		for id, p := range peers {
			switch {
			case id != senderID && p.ChannelID == sender.ChannelID:
				recipients = append(recipients, p)
			case id == senderID && sender.EchoEnabled:
				recipients = append(recipients, p)
			}
		}
	})
	return recipients
}

// ChatRoute is the outcome of routing one inbound TextMessage.
type ChatRoute struct {
	SenderFound    bool
	IsEchoCommand  bool
	EchoEnabled    bool // the sender's echo_enabled value after toggling
	SenderUsername string
	ChannelID      uint32
	Recipients     []*presence.Peer // channel-scoped broadcast targets, only set for non-/echo messages
}

// ChatRouteApply toggles echo mode or computes channel-scoped broadcast
// recipients for one inbound chat message, mutating the sender's
// echo_enabled flag in the /echo case. Per spec §4.5.2 this repo's
// broadcast is channel-scoped, not global — the historical draft in the
// original handler.rs broadcast to every connected peer and persisted
// against a hardcoded channel 0; the contract here is that chat stays
// within the sender's current channel.
func ChatRouteApply(st *presence.Store, senderID uint32, body string) ChatRoute {
	var result ChatRoute
	st.Compute(func(peers map[uint32]*presence.Peer, _ map[uint32]*presence.Channel) {
		sender, ok := peers[senderID]
		if !ok {
			return
		}
		result.SenderFound = true
		result.SenderUsername = sender.Username
		result.ChannelID = sender.ChannelID

		if strings.HasPrefix(body, "/echo") {
			sender.EchoEnabled = !sender.EchoEnabled
			result.IsEchoCommand = true
			result.EchoEnabled = sender.EchoEnabled
			return
		}

		for _, p := range peers {
			if p.ChannelID == sender.ChannelID {
				result.Recipients = append(result.Recipients, p)
			}
		}
	})
	return result
}

// PresenceRoute is the outcome of applying a client's UserState delta.
type PresenceRoute struct {
	SenderFound bool
	Recipients  []*presence.Peer // every peer in the store, including the sender

	ChannelMoved bool
	NewChannelID uint32

	MuteDeafChanged bool
	SelfMute        *bool
	SelfDeaf        *bool
}

// PresenceRouteApply applies a sparse UserState delta to the sender's peer
// record and reports what changed, per spec §4.5.3. A set self_deaf=true
// forces self_mute=true on the peer and in the reported delta, regardless
// of what the client asked for.
func PresenceRouteApply(st *presence.Store, senderID uint32, channelID *uint32, selfMute, selfDeaf *bool) PresenceRoute {
	var result PresenceRoute
	st.Compute(func(peers map[uint32]*presence.Peer, _ map[uint32]*presence.Channel) {
		sender, ok := peers[senderID]
		if !ok {
			return
		}
		result.SenderFound = true
		for _, p := range peers {
			result.Recipients = append(result.Recipients, p)
		}

		if channelID != nil {
			sender.ChannelID = *channelID
			result.ChannelMoved = true
			result.NewChannelID = *channelID
		}

		if selfMute != nil {
			sender.SelfMute = *selfMute
			v := *selfMute
			result.SelfMute = &v
			result.MuteDeafChanged = true
		}
		if selfDeaf != nil {
			sender.SelfDeaf = *selfDeaf
			v := *selfDeaf
			result.SelfDeaf = &v
			result.MuteDeafChanged = true

			if *selfDeaf {
				sender.SelfMute = true
				forced := true
				result.SelfMute = &forced
			}
		}
	})
	return result
}

// Package presence holds the process-wide mapping of connected peers and
// known channels, and the bounded per-peer outbound queues that feed the
// wire. One sync.Mutex guards the whole thing, the same shape as the
// teacher's ChannelState: mutations happen under the lock, delivery to a
// peer never blocks under it.
package presence

import (
	"sort"
	"sync"
)

// OutboundCapacity bounds how many undelivered messages may queue up behind
// one peer before new enqueues are dropped.
const OutboundCapacity = 256

// Peer is the in-memory record for one active session.
type Peer struct {
	SessionID    uint32
	Username     string
	ChannelID    uint32
	SelfMute     bool
	SelfDeaf     bool
	EchoEnabled  bool
	outbound     chan any
	outboundOnce sync.Once
}

// Channel is a named grouping of peers, loaded once at startup.
type Channel struct {
	ChannelID   uint32
	ParentID    *uint32
	Name        string
	Description *string
}

// Store is the shared presence state: peers, channels, and the session id
// counter, all behind one mutex. No method here performs I/O; callers are
// responsible for releasing the lock (i.e. returning from a Store method)
// before writing to the network or touching the storage adapter.
type Store struct {
	mu            sync.Mutex
	peers         map[uint32]*Peer
	channels      map[uint32]*Channel
	nextSessionID uint32
}

// NewStore returns an empty Store. Channels are loaded separately via
// InsertChannel, once, at startup (spec: "the core does not create or
// delete channels at runtime").
func NewStore() *Store {
	return &Store{
		peers:         make(map[uint32]*Peer),
		channels:      make(map[uint32]*Channel),
		nextSessionID: 1,
	}
}

// AllocateSessionID returns the next monotonically increasing session id.
// Session ids start at 1 and are never reused within a process lifetime.
func (s *Store) AllocateSessionID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSessionID
	s.nextSessionID++
	return id
}

// InsertPeer adds a new peer record, wiring its outbound queue. It is the
// caller's responsibility to have allocated a fresh session id first.
func (s *Store) InsertPeer(p *Peer) {
	p.outbound = make(chan any, OutboundCapacity)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.SessionID] = p
}

// RemovePeer deletes a peer from the store and returns the record that was
// removed, if any. The caller closes the returned peer's outbound queue
// after the lock is released, per the invariant that a peer is removed from
// the mapping strictly before its queue is closed.
func (s *Store) RemovePeer(id uint32) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return nil, false
	}
	delete(s.peers, id)
	return p, true
}

// ClosePeerQueue closes a peer's outbound channel. Idempotent: the close is
// guarded by the peer's own sync.Once, so repeated calls are no-ops.
func ClosePeerQueue(p *Peer) {
	p.outboundOnce.Do(func() {
		close(p.outbound)
	})
}

// Outbound returns the peer's outbound delivery channel.
func (p *Peer) Outbound() <-chan any {
	return p.outbound
}

// TrySend enqueues msg to the peer's outbound queue without blocking. It
// reports whether the message was accepted; a full queue drops the message
// (spec §5, "Backpressure / overload"). A peer whose queue has already been
// closed by teardown is treated the same as a full queue: send-on-closed-
// channel panics are recovered here rather than propagated, since a caller
// may still hold a peer pointer obtained just before the peer departed.
func TrySend(p *Peer, msg any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case p.outbound <- msg:
		return true
	default:
		return false
	}
}

// WithPeer runs fn with the peer identified by id, holding the store lock
// for the duration. fn must not perform I/O or block.
func (s *Store) WithPeer(id uint32, fn func(p *Peer)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// Compute runs fn with direct access to the peer and channel maps, holding
// the store lock for the duration. This is the seam the routing package
// uses to implement the routing rules as pure functions of presence state;
// fn must not perform I/O, send on a channel's outbound queue is the one
// exception since that's itself non-blocking and lock-free.
func (s *Store) Compute(fn func(peers map[uint32]*Peer, channels map[uint32]*Channel)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.peers, s.channels)
}

// GetPeerSnapshot returns a copy of a peer's fields, or false if the
// session is not active. Safe to use outside the lock since it's a copy.
func (s *Store) GetPeerSnapshot(id uint32) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// ListPeers returns the live peer records. The slice and its pointees must
// be treated as a snapshot; mutate peers only via WithPeer.
func (s *Store) ListPeers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// PeerCount returns the number of active sessions.
func (s *Store) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// InsertChannel adds a channel record. Called only during startup load.
func (s *Store) InsertChannel(c *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ChannelID] = c
}

// HasChannel reports whether channelID names a known channel.
func (s *Store) HasChannel(channelID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[channelID]
	return ok
}

// ListChannelsSorted returns every channel record in ascending channel_id
// order, the stable order spec §4.4 step 5 requires for client tree
// construction.
func (s *Store) ListChannelsSorted() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// ChannelCount reports how many channels are loaded.
func (s *Store) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// Stats is a point-in-time snapshot for the admin API and metrics ticker.
type Stats struct {
	Peers           int
	Channels        int
	PeersPerChannel map[uint32]int
}

// Snapshot computes Stats under a single lock acquisition.
func (s *Store) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	perChannel := make(map[uint32]int, len(s.channels))
	for _, p := range s.peers {
		perChannel[p.ChannelID]++
	}
	return Stats{
		Peers:           len(s.peers),
		Channels:        len(s.channels),
		PeersPerChannel: perChannel,
	}
}

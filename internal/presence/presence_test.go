package presence

import "testing"

func TestAllocateSessionIDStrictlyIncreasing(t *testing.T) {
	s := NewStore()
	prev := s.AllocateSessionID()
	for i := 0; i < 100; i++ {
		id := s.AllocateSessionID()
		if id <= prev {
			t.Fatalf("AllocateSessionID not strictly increasing: %d then %d", prev, id)
		}
		prev = id
	}
}

func TestAllocateSessionIDStartsAtOne(t *testing.T) {
	s := NewStore()
	if id := s.AllocateSessionID(); id != 1 {
		t.Fatalf("got first id %d, want 1", id)
	}
}

func TestRemovePeerDeletesBeforeQueueCloses(t *testing.T) {
	s := NewStore()
	p := &Peer{SessionID: s.AllocateSessionID(), Username: "alice"}
	s.InsertPeer(p)

	if s.PeerCount() != 1 {
		t.Fatalf("got %d peers after insert, want 1", s.PeerCount())
	}

	removed, ok := s.RemovePeer(p.SessionID)
	if !ok || removed != p {
		t.Fatalf("RemovePeer returned (%v, %v), want (p, true)", removed, ok)
	}
	if s.PeerCount() != 0 {
		t.Fatalf("peer still present in store after RemovePeer")
	}
	if _, ok := s.GetPeerSnapshot(p.SessionID); ok {
		t.Fatalf("GetPeerSnapshot still finds a removed peer")
	}

	// The queue must still be open at this point: removal from the map
	// happens strictly before the queue is closed, so a send racing the
	// removal (but arriving before ClosePeerQueue) is not lost to a panic.
	if !TrySend(p, "still open") {
		t.Fatalf("TrySend failed before ClosePeerQueue, want queue still open")
	}
	<-p.outbound

	ClosePeerQueue(p)
	if _, open := <-p.outbound; open {
		t.Fatalf("outbound channel still open after ClosePeerQueue")
	}
}

func TestRemovePeerUnknownIDReturnsFalse(t *testing.T) {
	s := NewStore()
	if _, ok := s.RemovePeer(999); ok {
		t.Fatalf("RemovePeer of unknown id returned ok=true")
	}
}

func TestClosePeerQueueIdempotent(t *testing.T) {
	p := &Peer{SessionID: 1, outbound: make(chan any, 1)}
	ClosePeerQueue(p)
	ClosePeerQueue(p) // must not panic on double-close
}

func TestTrySendDropsOnFullQueue(t *testing.T) {
	s := NewStore()
	p := &Peer{SessionID: s.AllocateSessionID(), Username: "bob"}
	s.InsertPeer(p)

	for i := 0; i < OutboundCapacity; i++ {
		if !TrySend(p, i) {
			t.Fatalf("TrySend %d failed before queue full", i)
		}
	}
	if TrySend(p, "overflow") {
		t.Fatalf("TrySend succeeded on a full queue, want drop")
	}
	if len(p.outbound) != OutboundCapacity {
		t.Fatalf("queue length %d, want %d", len(p.outbound), OutboundCapacity)
	}
}

func TestTrySendAfterCloseReturnsFalse(t *testing.T) {
	p := &Peer{SessionID: 1, outbound: make(chan any, 1)}
	ClosePeerQueue(p)
	if TrySend(p, "too late") {
		t.Fatalf("TrySend on a closed queue returned true, want false")
	}
}

func TestInsertChannelAndListChannelsSortedOrder(t *testing.T) {
	s := NewStore()
	s.InsertChannel(&Channel{ChannelID: 2, Name: "Music"})
	s.InsertChannel(&Channel{ChannelID: 0, Name: "Root"})
	s.InsertChannel(&Channel{ChannelID: 1, Name: "Gaming"})

	chans := s.ListChannelsSorted()
	if len(chans) != 3 {
		t.Fatalf("got %d channels, want 3", len(chans))
	}
	for i, want := range []uint32{0, 1, 2} {
		if chans[i].ChannelID != want {
			t.Fatalf("channel %d has id %d, want %d", i, chans[i].ChannelID, want)
		}
	}
	if !s.HasChannel(1) || s.HasChannel(5) {
		t.Fatalf("HasChannel mismatched expected membership")
	}
}

func TestSnapshotCountsPeersPerChannel(t *testing.T) {
	s := NewStore()
	a := &Peer{SessionID: s.AllocateSessionID(), ChannelID: 0}
	b := &Peer{SessionID: s.AllocateSessionID(), ChannelID: 0}
	c := &Peer{SessionID: s.AllocateSessionID(), ChannelID: 1}
	s.InsertPeer(a)
	s.InsertPeer(b)
	s.InsertPeer(c)
	s.InsertChannel(&Channel{ChannelID: 0, Name: "Root"})
	s.InsertChannel(&Channel{ChannelID: 1, Name: "Gaming"})

	snap := s.Snapshot()
	if snap.Peers != 3 || snap.Channels != 2 {
		t.Fatalf("got %+v", snap)
	}
	if snap.PeersPerChannel[0] != 2 || snap.PeersPerChannel[1] != 1 {
		t.Fatalf("got per-channel counts %+v", snap.PeersPerChannel)
	}
}

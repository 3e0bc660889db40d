package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mumbled/internal/presence"
)

func TestHealthAndStats(t *testing.T) {
	store := presence.NewStore()
	store.InsertChannel(&presence.Channel{ChannelID: 0, Name: "Root"})
	store.InsertPeer(&presence.Peer{SessionID: 1, Username: "alice", ChannelID: 0})

	api := New(store)
	ts := httptest.NewServer(api.Echo())
	defer ts.Close()

	healthResp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer healthResp.Body.Close()
	if healthResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", healthResp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(healthResp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Peers != 1 {
		t.Fatalf("unexpected health payload: %#v", health)
	}

	statsResp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer statsResp.Body.Close()
	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /api/stats, got %d", statsResp.StatusCode)
	}
	var stats statsResponse
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Peers != 1 || stats.Channels != 1 {
		t.Fatalf("unexpected stats payload: %#v", stats)
	}
	if stats.PeersPerChannel[0] != 1 {
		t.Fatalf("expected channel 0 to have 1 peer, got %#v", stats.PeersPerChannel)
	}
}

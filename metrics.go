package main

import (
	"context"
	"log"
	"time"

	"mumbled/internal/presence"
)

// RunMetrics logs presence stats every interval until ctx is canceled. A
// tick with no connected peers logs nothing.
func RunMetrics(ctx context.Context, store *presence.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := store.Snapshot()
			if snap.Peers > 0 {
				log.Printf("[metrics] peers=%d channels=%d", snap.Peers, snap.Channels)
			}
		}
	}
}

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"mumbled/internal/auth"
	"mumbled/internal/httpapi"
	"mumbled/internal/presence"
	"mumbled/internal/session"
	"mumbled/internal/store"
)

func main() {
	addr := flag.String("addr", ":64738", "Mumble TLS listen address")
	adminAddr := flag.String("admin-addr", ":8080", "admin HTTP API listen address (empty to disable)")
	dbPath := flag.String("db", "mumbled.db", "SQLite database path")
	certValidity := flag.Duration("cert-validity", 8760*time.Hour, "self-signed TLS certificate validity")
	rateLimit := flag.Int("rate-limit", 50, "maximum inbound messages per second per connection")
	welcomeText := flag.String("welcome", "Welcome to mumbled.", "welcome text sent to clients on join")
	flag.Parse()

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer db.Close()

	presenceStore := presence.NewStore()
	if err := seedDefaults(db, presenceStore); err != nil {
		log.Fatalf("[store] seed: %v", err)
	}

	tlsHostname := ""
	if host, _, err := net.SplitHostPort(*addr); err == nil && host != "" {
		tlsHostname = host
	}
	tlsConfig, fingerprint, err := generateTLSConfig(*certValidity, tlsHostname)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	log.Printf("[server] TLS certificate fingerprint: %s", fingerprint)

	gateway := auth.NewGateway(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancel()
	}()

	go RunMetrics(ctx, presenceStore, 30*time.Second)

	if *adminAddr != "" {
		api := httpapi.New(presenceStore)
		go func() {
			if err := api.Run(ctx, *adminAddr); err != nil {
				log.Printf("[admin] %v", err)
			}
		}()
		log.Printf("[admin] listening on %s", *adminAddr)
	}

	if err := listenAndServe(ctx, *addr, tlsConfig, presenceStore, db, gateway, *rateLimit, *welcomeText); err != nil {
		log.Fatalf("[server] %v", err)
	}
}

// listenAndServe accepts TLS connections on addr indefinitely, spawning an
// independent session for each. A connection that fails its TLS handshake
// is logged and dropped without affecting other sessions or the accept loop
// (spec §4.7).
func listenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config, presenceStore *presence.Store, db *store.Store, gateway *auth.Gateway, rateLimit int, welcomeText string) error {
	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	log.Printf("[server] listening on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Warn("accept failed", "err", err)
				continue
			}
		}
		go handleConn(ctx, conn, presenceStore, db, gateway, rateLimit, welcomeText)
	}
}

func handleConn(ctx context.Context, conn net.Conn, presenceStore *presence.Store, db *store.Store, gateway *auth.Gateway, rateLimit int, welcomeText string) {
	sess := session.New(conn, presenceStore, db, rateLimit, welcomeText)
	if err := sess.Bootstrap(ctx, gateway); err != nil {
		slog.Info("session bootstrap failed", "remote", conn.RemoteAddr().String(), "err", err)
		_ = conn.Close()
		return
	}
	sess.Run(ctx)
}

// seedDefaults creates a default root channel on first run and loads every
// persisted channel into the presence store (spec: "the core does not
// create or delete channels at runtime").
func seedDefaults(db *store.Store, presenceStore *presence.Store) error {
	ctx := context.Background()
	if err := db.EnsureRootChannel(ctx); err != nil {
		return err
	}

	channels, err := db.ListChannels(ctx)
	if err != nil {
		return err
	}
	for _, c := range channels {
		var parentID *uint32
		if c.ParentID != nil {
			p := uint32(*c.ParentID)
			parentID = &p
		}
		presenceStore.InsertChannel(&presence.Channel{
			ChannelID:   uint32(c.ID),
			ParentID:    parentID,
			Name:        c.Name,
			Description: c.Description,
		})
	}
	return nil
}

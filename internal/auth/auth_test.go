package auth

import (
	"context"
	"testing"

	"mumbled/internal/store"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewGateway(st)
}

func ptr(s string) *string { return &s }

func TestAutoRegistersUnknownUser(t *testing.T) {
	g := openTestGateway(t)
	d, err := g.Authenticate(context.Background(), ptr("alice"), ptr("hunter2"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !d.Accepted || d.Username != "alice" {
		t.Fatalf("got %+v", d)
	}
}

func TestAcceptsCorrectPasswordOnReturn(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()
	if _, err := g.Authenticate(ctx, ptr("alice"), ptr("hunter2")); err != nil {
		t.Fatalf("Authenticate (register): %v", err)
	}

	d, err := g.Authenticate(ctx, ptr("alice"), ptr("hunter2"))
	if err != nil {
		t.Fatalf("Authenticate (login): %v", err)
	}
	if !d.Accepted {
		t.Fatalf("got %+v, want accepted", d)
	}
}

func TestRejectsWrongPassword(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()
	if _, err := g.Authenticate(ctx, ptr("alice"), ptr("hunter2")); err != nil {
		t.Fatalf("Authenticate (register): %v", err)
	}

	d, err := g.Authenticate(ctx, ptr("alice"), ptr("wrong"))
	if err != nil {
		t.Fatalf("Authenticate (login): %v", err)
	}
	if d.Accepted || d.Reason != "Invalid password" {
		t.Fatalf("got %+v, want rejection", d)
	}
}

func TestMissingUsernameDefaultsToUnknown(t *testing.T) {
	g := openTestGateway(t)
	d, err := g.Authenticate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !d.Accepted || d.Username != "Unknown" {
		t.Fatalf("got %+v", d)
	}
}

// Package auth is the authentication gateway: given a credential pair, it
// either admits the connection with a canonical username or produces a
// typed rejection, auto-registering usernames it has not seen before.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"mumbled/internal/store"
)

// Argon2id parameters. Encoded alongside every hash (PHC-string shape) so
// they can change later without invalidating passwords hashed under the
// old settings.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// Decision is the outcome of Authenticate.
type Decision struct {
	Accepted bool
	Username string
	Reason   string // set only when !Accepted
}

// Gateway authenticates against a backing Store, auto-registering unknown
// usernames (spec §4.3: "Auto-registration is intentional in this
// profile").
type Gateway struct {
	store *store.Store
}

// NewGateway wraps a store for use as an authentication backend.
func NewGateway(st *store.Store) *Gateway {
	return &Gateway{store: st}
}

// Authenticate looks up username (defaulting to "Unknown" if absent) and
// verifies password against the stored hash. Unknown usernames are
// registered on the spot with a freshly salted hash.
func (g *Gateway) Authenticate(ctx context.Context, username, password *string) (Decision, error) {
	name := "Unknown"
	if username != nil {
		name = *username
	}
	pass := ""
	if password != nil {
		pass = *password
	}

	user, err := g.store.LookupUser(ctx, name)
	if err == nil {
		if verify(pass, user.PasswordHash) {
			return Decision{Accepted: true, Username: name}, nil
		}
		return Decision{Accepted: false, Reason: "Invalid password"}, nil
	}
	if err != store.ErrUserNotFound {
		return Decision{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := hash(pass)
	if err != nil {
		return Decision{}, fmt.Errorf("hash password: %w", err)
	}
	if _, err := g.store.CreateUser(ctx, name, hash); err != nil {
		return Decision{}, fmt.Errorf("register user: %w", err)
	}
	return Decision{Accepted: true, Username: name}, nil
}

// hash produces a PHC-style self-describing string: algorithm, version and
// parameters in plain text, then salt and derived key base64-encoded, so a later change
// to argonTime/argonMemory/argonThreads doesn't break verification of
// passwords hashed under the old parameters.
func hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verify reports whether password matches an encoded hash produced by
// hash. It re-derives the key using the parameters embedded in the
// string, so it tolerates hashes minted under different argon2 settings.
func verify(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	var memory uint32
	var time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

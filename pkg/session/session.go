// Package session keeps the bearer credentials obtained by the auth tool so
// that later, independent tool calls can present them to the AgentOps API.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no credential is held for an id.
	ErrNotFound = errors.New("session credential not found")

	// ErrAuthenticationRequired is returned when an operation needs a
	// credential and the session has none.
	ErrAuthenticationRequired = errors.New("authentication required")
)

// DefaultID names the single session used when sessions are process scoped.
const DefaultID = "default"

// Credential is a bearer token and the moment it was obtained.
type Credential struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Store persists at most one credential per session id.
type Store interface {
	// Get returns the credential for id or ErrNotFound.
	Get(ctx context.Context, id string) (*Credential, error)

	// Set replaces the credential for id.
	Set(ctx context.Context, id string, cred *Credential) error

	// Delete forgets the credential for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteIf forgets the credential for id only while it still holds token.
	// It reports whether a credential was removed.
	DeleteIf(ctx context.Context, id, token string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// State is the credential slot of one logical agent session.
type State struct {
	store Store
	id    string
	now   func() time.Time
}

// NewState binds a store to a session id.
func NewState(store Store, id string) *State {
	if id == "" {
		id = DefaultID
	}
	return &State{store: store, id: id, now: time.Now}
}

// ID returns the session id.
func (s *State) ID() string {
	return s.id
}

// SetCredential overwrites the stored credential.
func (s *State) SetCredential(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("refusing to store empty credential")
	}
	return s.store.Set(ctx, s.id, &Credential{Token: token, IssuedAt: s.now()})
}

// Credential returns the current credential or ErrAuthenticationRequired.
func (s *State) Credential(ctx context.Context) (*Credential, error) {
	cred, err := s.store.Get(ctx, s.id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAuthenticationRequired
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// CheckAuthenticated fails with ErrAuthenticationRequired when no
// credential is held.
func (s *State) CheckAuthenticated(ctx context.Context) error {
	_, err := s.Credential(ctx)
	return err
}

// AuthHeader returns the Authorization header for the current credential.
func (s *State) AuthHeader(ctx context.Context) (http.Header, error) {
	cred, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+cred.Token)
	return h, nil
}

// Clear drops the credential.
func (s *State) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.id)
}

// ClearIf drops the credential only if it is still token. A credential set
// by a later authentication survives.
func (s *State) ClearIf(ctx context.Context, token string) (bool, error) {
	return s.store.DeleteIf(ctx, s.id, token)
}

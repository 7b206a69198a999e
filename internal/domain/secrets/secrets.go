// Package secrets keeps per-session key/value secrets such as API keys.
//
// Secrets live only in memory for the lifetime of a session. They are never
// persisted and never injected into the isolated preview context.
package secrets

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// Mask replaces hidden values in listings.
const Mask = "••••••••••••••••"

var (
	ErrIncomplete   = errors.New("both key and value are required")
	ErrDuplicateKey = errors.New("a secret with this key already exists")
	ErrNotFound     = errors.New("secret not found")
)

// Secret is a stored key/value pair.
type Secret struct {
	ID    id.SecretID `json:"id"`
	Key   string      `json:"key"`
	Value string      `json:"-"`
}

// View is the listing form of a secret. Value holds Mask unless revealed.
type View struct {
	ID       id.SecretID `json:"id"`
	Key      string      `json:"key"`
	Value    string      `json:"value"`
	Revealed bool        `json:"revealed"`
}

// Vault is a session's secret collection, in insertion order.
type Vault struct {
	mu       sync.RWMutex
	secrets  []Secret
	revealed map[id.SecretID]bool
}

func NewVault() *Vault {
	return &Vault{revealed: make(map[id.SecretID]bool)}
}

// Add stores a trimmed key/value pair.
func (v *Vault) Add(key, value string) (Secret, error) {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return Secret{}, ErrIncomplete
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if slices.ContainsFunc(v.secrets, func(s Secret) bool { return s.Key == key }) {
		return Secret{}, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	s := Secret{ID: id.NewSecretID(), Key: key, Value: value}
	v.secrets = append(v.secrets, s)
	return s, nil
}

func (v *Vault) Delete(secretID id.SecretID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := slices.IndexFunc(v.secrets, func(s Secret) bool { return s.ID == secretID })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, secretID)
	}
	v.secrets = slices.Delete(v.secrets, i, i+1)
	delete(v.revealed, secretID)
	return nil
}

// Toggle flips whether a secret's value is shown in listings.
func (v *Vault) Toggle(secretID id.SecretID) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !slices.ContainsFunc(v.secrets, func(s Secret) bool { return s.ID == secretID }) {
		return false, fmt.Errorf("%w: %s", ErrNotFound, secretID)
	}
	v.revealed[secretID] = !v.revealed[secretID]
	return v.revealed[secretID], nil
}

// List returns every secret with hidden values masked.
func (v *Vault) List() []View {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]View, 0, len(v.secrets))
	for _, s := range v.secrets {
		view := View{ID: s.ID, Key: s.Key, Value: Mask}
		if v.revealed[s.ID] {
			view.Value = s.Value
			view.Revealed = true
		}
		out = append(out, view)
	}
	return out
}

func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.secrets)
}

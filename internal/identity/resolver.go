// Package identity maps version-control identities to organizational identities.
package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/pkg/models"
)

// Store persists identity mappings.
type Store interface {
	LoadIdentities(ctx context.Context) ([]models.IdentityMapping, error)
	SaveIdentities(ctx context.Context, mappings []models.IdentityMapping) error
}

// Resolver holds the identity map for one process. Mappings are loaded
// once, learned during a pass, and flushed in one batch at the end.
type Resolver struct {
	store Store

	mu            sync.RWMutex
	known         map[string]string
	authoritative map[string]bool
	pending       map[string]models.IdentityMapping
}

// NewResolver creates an empty resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:         store,
		known:         make(map[string]string),
		authoritative: make(map[string]bool),
		pending:       make(map[string]models.IdentityMapping),
	}
}

// Normalize returns the lookup form of a version-control identity.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Load seeds the resolver from the store.
func (r *Resolver) Load(ctx context.Context) error {
	mappings, err := r.store.LoadIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load identity mappings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range mappings {
		key := Normalize(m.VCSIdentity)
		if key == "" {
			continue
		}
		if r.authoritative[key] && !m.Authoritative {
			continue
		}
		r.known[key] = m.OrgIdentity
		if m.Authoritative {
			r.authoritative[key] = true
		}
	}

	logging.Debug("Loaded identity mappings", "count", len(mappings))
	return nil
}

// Seed installs configured mappings. They override learned mappings and
// are never replaced by discovery.
func (r *Resolver) Seed(mappings map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, org := range mappings {
		key := Normalize(id)
		org = strings.TrimSpace(org)
		if key == "" || org == "" {
			continue
		}
		if r.known[key] == org && r.authoritative[key] {
			continue
		}
		r.known[key] = org
		r.authoritative[key] = true
		r.pending[key] = models.IdentityMapping{VCSIdentity: key, OrgIdentity: org, Authoritative: true}
	}
}

// Resolve looks up the organizational identity for id.
func (r *Resolver) Resolve(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	org, ok := r.known[Normalize(id)]
	return org, ok
}

// Learn records a discovered mapping. The latest learned value wins, but a
// configured mapping is never overridden. It reports whether the map changed.
func (r *Resolver) Learn(id, org string) bool {
	key := Normalize(id)
	org = strings.TrimSpace(org)
	if key == "" || org == "" || org == models.Unknown {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.authoritative[key] {
		return false
	}
	if current, ok := r.known[key]; ok && current == org {
		return false
	}

	r.known[key] = org
	r.pending[key] = models.IdentityMapping{VCSIdentity: key, OrgIdentity: org}
	logging.Debug("Learned identity mapping", "vcs_identity", key, "org_identity", org)
	return true
}

// Pending returns the mappings not yet persisted, ordered by identity.
func (r *Resolver) Pending() []models.IdentityMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.IdentityMapping, 0, len(r.pending))
	for _, m := range r.pending {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VCSIdentity < out[j].VCSIdentity })
	return out
}

// Flush persists pending mappings in one batch. On failure the mappings
// stay pending for the next flush.
func (r *Resolver) Flush(ctx context.Context) (int, error) {
	batch := r.Pending()
	if len(batch) == 0 {
		return 0, nil
	}

	if err := r.store.SaveIdentities(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to save %d identity mappings: %w", len(batch), err)
	}

	r.mu.Lock()
	for _, m := range batch {
		if cur, ok := r.pending[m.VCSIdentity]; ok && cur == m {
			delete(r.pending, m.VCSIdentity)
		}
	}
	r.mu.Unlock()

	logging.Info("Saved identity mappings", "count", len(batch))
	return len(batch), nil
}

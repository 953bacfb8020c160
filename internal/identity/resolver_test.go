package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/weave/pkg/models"
)

// MockStore is a mock implementation of Store.
type MockStore struct {
	LoadIdentitiesFunc func(ctx context.Context) ([]models.IdentityMapping, error)
	SaveIdentitiesFunc func(ctx context.Context, mappings []models.IdentityMapping) error
	saved              [][]models.IdentityMapping
}

func (m *MockStore) LoadIdentities(ctx context.Context) ([]models.IdentityMapping, error) {
	if m.LoadIdentitiesFunc != nil {
		return m.LoadIdentitiesFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) SaveIdentities(ctx context.Context, mappings []models.IdentityMapping) error {
	if m.SaveIdentitiesFunc != nil {
		if err := m.SaveIdentitiesFunc(ctx, mappings); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, mappings)
	return nil
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	store := &MockStore{LoadIdentitiesFunc: func(context.Context) ([]models.IdentityMapping, error) {
		return []models.IdentityMapping{{VCSIdentity: "octocat", OrgIdentity: "Mona Lisa"}}, nil
	}}
	r := NewResolver(store)
	require.NoError(t, r.Load(context.Background()))

	for _, id := range []string{"octocat", "OctoCat", "  OCTOCAT "} {
		org, ok := r.Resolve(id)
		assert.True(t, ok, id)
		assert.Equal(t, "Mona Lisa", org, id)
	}

	_, ok := r.Resolve("hubot")
	assert.False(t, ok)
}

func TestLearnIsVisibleImmediatelyAndFlushedOnce(t *testing.T) {
	store := &MockStore{}
	r := NewResolver(store)

	assert.True(t, r.Learn("Hubot", "Hu Bot"))
	org, ok := r.Resolve("hubot")
	require.True(t, ok)
	assert.Equal(t, "Hu Bot", org)

	assert.False(t, r.Learn("hubot", "Hu Bot"), "same mapping is not queued again")
	assert.True(t, r.Learn("zed", "Zed Shaw"))

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.saved, 1)
	assert.Equal(t, []models.IdentityMapping{
		{VCSIdentity: "hubot", OrgIdentity: "Hu Bot"},
		{VCSIdentity: "zed", OrgIdentity: "Zed Shaw"},
	}, store.saved[0])

	n, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, store.saved, 1)
}

func TestLatestLearnedMappingWins(t *testing.T) {
	r := NewResolver(&MockStore{})
	r.Learn("ada", "Ada Byron")
	r.Learn("ada", "Ada Lovelace")

	org, _ := r.Resolve("ada")
	assert.Equal(t, "Ada Lovelace", org)
	assert.Equal(t, []models.IdentityMapping{{VCSIdentity: "ada", OrgIdentity: "Ada Lovelace"}}, r.Pending())
}

func TestSeededMappingOverridesDiscovery(t *testing.T) {
	store := &MockStore{LoadIdentitiesFunc: func(context.Context) ([]models.IdentityMapping, error) {
		return []models.IdentityMapping{{VCSIdentity: "ada", OrgIdentity: "Someone Else"}}, nil
	}}
	r := NewResolver(store)
	require.NoError(t, r.Load(context.Background()))
	r.Seed(map[string]string{"ADA": "Ada Lovelace"})

	assert.False(t, r.Learn("ada", "Ada Byron"))
	org, _ := r.Resolve("ada")
	assert.Equal(t, "Ada Lovelace", org)
	assert.Equal(t, []models.IdentityMapping{{VCSIdentity: "ada", OrgIdentity: "Ada Lovelace", Authoritative: true}}, r.Pending())
}

func TestLearnIgnoresEmptyAndUnknown(t *testing.T) {
	r := NewResolver(&MockStore{})
	assert.False(t, r.Learn("", "Ada"))
	assert.False(t, r.Learn("ada", ""))
	assert.False(t, r.Learn("ada", "Unknown"))
	assert.Empty(t, r.Pending())
}

func TestFlushFailureKeepsPending(t *testing.T) {
	store := &MockStore{SaveIdentitiesFunc: func(context.Context, []models.IdentityMapping) error {
		return errors.New("database is locked")
	}}
	r := NewResolver(store)
	r.Learn("ada", "Ada Lovelace")

	_, err := r.Flush(context.Background())
	require.Error(t, err)
	assert.Len(t, r.Pending(), 1)
}

func TestLoadError(t *testing.T) {
	store := &MockStore{LoadIdentitiesFunc: func(context.Context) ([]models.IdentityMapping, error) {
		return nil, errors.New("no such table")
	}}
	err := NewResolver(store).Load(context.Background())
	assert.ErrorContains(t, err, "failed to load identity mappings")
}

func TestLoadMappingsFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "identities.yaml")
	require.NoError(t, os.WriteFile(good, []byte("identities:\n  - vcs: OctoCat\n    person: Mona Lisa\n"), 0o600))
	got, err := LoadMappingsFile(good)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"octocat": "Mona Lisa"}, got)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("identities:\n  - vcs: octocat\n"), 0o600))
	_, err = LoadMappingsFile(bad)
	assert.ErrorContains(t, err, "vcs and person are required")

	_, err = LoadMappingsFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/vectora/internal/models"
)

func seedCollection(t *testing.T, db *memDB, store *memStore, col models.Collection) {
	t.Helper()
	cp := col
	db.collections[col.Name] = &cp
	store.collections[col.Name] = true
}

func TestCreateDefaultsToPrivate(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")

	col, err := svc.Create(context.Background(), &Caller{UserID: "u1"}, "notes", "", "my notes")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, col.Visibility)
	assert.Equal(t, "u1", col.OwnerID)
	assert.True(t, store.collections["notes"])
	assert.False(t, col.CreatedAt.IsZero(), "timestamps come back from storage")
}

func TestCreateRejectsAnonymousAndBadVisibility(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")

	_, err := svc.Create(context.Background(), nil, "notes", "public", "")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = svc.Create(context.Background(), &Caller{UserID: "u1"}, "notes", "friends-only", "")
	assert.Error(t, err)
	assert.False(t, store.collections["notes"], "no side effect on validation failure")
}

func TestCreateCompensatesStoreOnRowFailure(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	db.failInsert = true
	svc := NewCollectionService(db, store, 1536, "cosine")

	_, err := svc.Create(context.Background(), &Caller{UserID: "u1"}, "notes", "public", "")
	require.Error(t, err)
	assert.Contains(t, store.deleted, "notes", "store collection must be rolled back")
	assert.False(t, store.collections["notes"])
}

func TestGetEnforcesVisibility(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{Name: "secret", OwnerID: "u1", Visibility: models.VisibilityPrivate})

	// Owner sees it.
	col, err := svc.Get(context.Background(), &Caller{UserID: "u1"}, "secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", col.Name)

	// A stranger gets not-found, not forbidden: private collections don't
	// reveal their existence.
	_, err = svc.Get(context.Background(), &Caller{UserID: "u2"}, "secret")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = svc.Get(context.Background(), nil, "secret")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestSharedVisibilityConsultsAllowList(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{
		Name: "team", OwnerID: "u1",
		Visibility:   models.VisibilityShared,
		AllowedUsers: []string{"u2"},
	})

	_, err := svc.Get(context.Background(), &Caller{UserID: "u2"}, "team")
	assert.NoError(t, err, "listed member may see a shared collection")

	_, err = svc.Get(context.Background(), &Caller{UserID: "u3"}, "team")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestAllowListIgnoredUnlessShared(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	// Stale allow-list on a private collection must not grant access.
	seedCollection(t, db, store, models.Collection{
		Name: "vault", OwnerID: "u1",
		Visibility:   models.VisibilityPrivate,
		AllowedUsers: []string{"u2"},
	})

	_, err := svc.Get(context.Background(), &Caller{UserID: "u2"}, "vault")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestUpdateSettingsOwnerOnly(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{Name: "notes", OwnerID: "u1", Visibility: models.VisibilityPublic})

	newVis := models.VisibilityShared
	_, err := svc.UpdateSettings(context.Background(), &Caller{UserID: "u2"}, "notes", nil, &newVis, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Even an admin may not change someone else's settings.
	_, err = svc.UpdateSettings(context.Background(), &Caller{UserID: "u3", Role: "admin"}, "notes", nil, &newVis, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	col, err := svc.UpdateSettings(context.Background(), &Caller{UserID: "u1"}, "notes", nil, &newVis, []string{"u2"})
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityShared, col.Visibility)
	assert.Equal(t, []string{"u2"}, col.AllowedUsers)

	// The new allow-list takes effect immediately.
	_, err = svc.Get(context.Background(), &Caller{UserID: "u2"}, "notes")
	assert.NoError(t, err)
}

func TestUpdateSettingsPartialPatch(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{
		Name: "notes", OwnerID: "u1",
		Visibility: models.VisibilityShared, Description: "old",
		AllowedUsers: []string{"u2"},
	})

	desc := "new description"
	col, err := svc.UpdateSettings(context.Background(), &Caller{UserID: "u1"}, "notes", &desc, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "new description", col.Description)
	assert.Equal(t, models.VisibilityShared, col.Visibility, "unset fields stay untouched")
	assert.Equal(t, []string{"u2"}, col.AllowedUsers)
}

func TestDeleteOwnerOrAdmin(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{Name: "a", OwnerID: "u1", Visibility: models.VisibilityPublic})
	seedCollection(t, db, store, models.Collection{Name: "b", OwnerID: "u1", Visibility: models.VisibilityPublic})

	err := svc.Delete(context.Background(), &Caller{UserID: "u2"}, "a")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, svc.Delete(context.Background(), &Caller{UserID: "u1"}, "a"))
	require.NoError(t, svc.Delete(context.Background(), &Caller{UserID: "u9", Role: "admin"}, "b"))

	assert.False(t, store.collections["a"])
	assert.False(t, store.collections["b"])
	assert.Empty(t, db.collections)
}

func TestListAccessiblePerCaller(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{Name: "pub", OwnerID: "u1", Visibility: models.VisibilityPublic})
	seedCollection(t, db, store, models.Collection{Name: "priv", OwnerID: "u1", Visibility: models.VisibilityPrivate})
	seedCollection(t, db, store, models.Collection{
		Name: "shared", OwnerID: "u1",
		Visibility:   models.VisibilityShared,
		AllowedUsers: []string{"u2"},
	})

	names := func(cols []models.Collection) []string {
		out := make([]string, len(cols))
		for i, c := range cols {
			out[i] = c.Name
		}
		return out
	}

	anon, err := svc.ListAccessible(context.Background(), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pub"}, names(anon))

	owner, err := svc.ListAccessible(context.Background(), &Caller{UserID: "u1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pub", "priv", "shared"}, names(owner))

	member, err := svc.ListAccessible(context.Background(), &Caller{UserID: "u2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pub", "shared"}, names(member))

	stranger, err := svc.ListAccessible(context.Background(), &Caller{UserID: "u3"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pub"}, names(stranger))
}

func TestListAccessibleIntersectsWithStore(t *testing.T) {
	db, store := newMemDB(), newMemStore()
	svc := NewCollectionService(db, store, 1536, "cosine")
	seedCollection(t, db, store, models.Collection{Name: "live", OwnerID: "u1", Visibility: models.VisibilityPublic})

	// A registry row whose store collection is gone must not be listed.
	orphan := models.Collection{Name: "orphan", OwnerID: "u1", Visibility: models.VisibilityPublic}
	db.collections["orphan"] = &orphan

	cols, err := svc.ListAccessible(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "live", cols[0].Name)
}

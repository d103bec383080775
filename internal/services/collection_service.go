package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/models"
)

// Caller is the authenticated identity attached to a request. A nil *Caller
// means anonymous.
type Caller struct {
	UserID string
	Role   string
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == "admin"
}

var (
	ErrNotAuthorized      = errors.New("caller is not authorized for this operation")
	ErrCollectionNotFound = errors.New("collection not found")
)

// CollectionService is the registry over vector collections: it owns the
// visibility rules and keeps the metadata rows in step with the vector
// store. The store governs existence; the registry governs who sees what.
type CollectionService struct {
	db       core.DbClient
	store    core.VectorStore
	dim      int
	distance string
}

func NewCollectionService(db core.DbClient, store core.VectorStore, dim int, distance string) *CollectionService {
	if distance == "" {
		distance = core.DistanceCosine
	}
	return &CollectionService{db: db, store: store, dim: dim, distance: distance}
}

// Create makes the vector-store collection first and the registry row
// second; a failed row insert compensates by deleting the store collection
// so the two never drift on the create path.
func (s *CollectionService) Create(ctx context.Context, caller *Caller, name, visibility, description string) (*models.Collection, error) {
	if caller == nil {
		return nil, ErrNotAuthorized
	}
	switch visibility {
	case models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityShared:
	case "":
		visibility = models.VisibilityPrivate
	default:
		return nil, fmt.Errorf("invalid visibility %q", visibility)
	}

	if err := s.store.CreateCollection(ctx, name, s.dim, s.distance); err != nil {
		return nil, fmt.Errorf("create vector collection: %w", err)
	}

	col := &models.Collection{
		Name:        name,
		OwnerID:     caller.UserID,
		Visibility:  visibility,
		Description: description,
	}
	if err := s.db.CreateCollection(ctx, col); err != nil {
		if derr := s.store.DeleteCollection(ctx, name); derr != nil {
			log.Printf("collections: compensating delete of %s failed: %v", name, derr)
		}
		return nil, fmt.Errorf("register collection: %w", err)
	}
	return col, nil
}

// Get returns the collection if the caller may see it.
func (s *CollectionService) Get(ctx context.Context, caller *Caller, name string) (*models.Collection, error) {
	col, err := s.db.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if col == nil || !visibleTo(col, caller) {
		return nil, ErrCollectionNotFound
	}
	return col, nil
}

// UpdateSettings mutates description/visibility/allowed users. Owner only;
// rejected before any side effect.
func (s *CollectionService) UpdateSettings(ctx context.Context, caller *Caller, name string, description, visibility *string, allowedUsers []string) (*models.Collection, error) {
	col, err := s.db.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, ErrCollectionNotFound
	}
	if caller == nil || caller.UserID != col.OwnerID {
		return nil, ErrNotAuthorized
	}

	if description != nil {
		col.Description = *description
	}
	if visibility != nil {
		switch *visibility {
		case models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityShared:
			col.Visibility = *visibility
		default:
			return nil, fmt.Errorf("invalid visibility %q", *visibility)
		}
	}
	if allowedUsers != nil {
		col.AllowedUsers = allowedUsers
	}

	if err := s.db.UpdateCollection(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// Delete removes the collection, owner or admin only. Two-phase: vector
// store first, metadata second; a metadata failure after the store delete is
// logged, not surfaced, since existence is already gone.
func (s *CollectionService) Delete(ctx context.Context, caller *Caller, name string) error {
	col, err := s.db.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	if col == nil {
		return ErrCollectionNotFound
	}
	if caller == nil || (caller.UserID != col.OwnerID && !caller.IsAdmin()) {
		return ErrNotAuthorized
	}

	if err := s.store.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete vector collection: %w", err)
	}
	if err := s.db.DeleteCollection(ctx, name); err != nil {
		log.Printf("collections: metadata delete of %s failed: %v", name, err)
	}
	return nil
}

// ListAccessible returns the collections the caller may see: the coarse
// storage filter (public OR owner OR shared) followed by the exact
// shared-membership check, intersected with what actually exists in the
// vector store.
func (s *CollectionService) ListAccessible(ctx context.Context, caller *Caller) ([]models.Collection, error) {
	var (
		rows []models.Collection
		err  error
	)
	if caller == nil {
		rows, err = s.db.ListPublicCollections(ctx)
	} else {
		rows, err = s.db.ListCollectionsCoarse(ctx, caller.UserID)
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	out := make([]models.Collection, 0, len(rows))
	for _, col := range rows {
		if !present[col.Name] {
			continue
		}
		if visibleTo(&col, caller) {
			out = append(out, col)
		}
	}
	return out, nil
}

// visibleTo implements the visibility rule: public, or caller is owner, or
// shared and caller is on the allow-list. allowed_users is consulted only
// when visibility is shared.
func visibleTo(col *models.Collection, caller *Caller) bool {
	if col.Visibility == models.VisibilityPublic {
		return true
	}
	if caller == nil {
		return false
	}
	if caller.UserID == col.OwnerID {
		return true
	}
	if col.Visibility == models.VisibilityShared {
		for _, u := range col.AllowedUsers {
			if u == caller.UserID {
				return true
			}
		}
	}
	return false
}

// Package exercises stores a profile's exercises as one JSON list in the
// profile's key-value store.
//
// Every mutation reads the whole list, transforms it and writes it back.
// Lists are small and the store is local to the profile, so there is no
// partial-write path. Two mutations are not atomic relative to each other:
// callers must ensure a single writer per profile.
package exercises

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
)

// ErrNotFound is returned by Get for an unknown id. Update and Delete treat a
// missing id as a no-op instead.
var ErrNotFound = errors.New("exercise not found")

// IDFunc generates a fresh exercise id.
type IDFunc func() (string, error)

// NewID returns "exercise_" followed by a time-ordered UUIDv7.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating exercise id: %w", err)
	}
	return "exercise_" + id.String(), nil
}

// Repository is the exercise list of one profile.
type Repository struct {
	store kv.Store
	newID IDFunc
}

// New creates a repository over store.
func New(store kv.Store) *Repository {
	return &Repository{store: store, newID: NewID}
}

// WithIDFunc replaces the id generator.
func (r *Repository) WithIDFunc(f IDFunc) *Repository {
	r.newID = f
	return r
}

// List returns all exercises in insertion order. A profile with no data, or
// with an unreadable list, has no exercises.
func (r *Repository) List(ctx context.Context) ([]models.Exercise, error) {
	var list []models.Exercise
	ok, err := kv.GetJSON(ctx, r.store, models.KeyExercises, &list)
	if err != nil {
		return nil, err
	}
	if !ok || list == nil {
		return []models.Exercise{}, nil
	}
	return list, nil
}

// Get returns the exercise with the given id.
func (r *Repository) Get(ctx context.Context, id string) (models.Exercise, error) {
	list, err := r.List(ctx)
	if err != nil {
		return models.Exercise{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return models.Exercise{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return list[i], nil
}

// Add stores a new exercise built from draft and returns it with its
// generated id. The draft is expected to be validated by the caller.
func (r *Repository) Add(ctx context.Context, draft models.ExerciseDraft) (models.Exercise, error) {
	list, err := r.List(ctx)
	if err != nil {
		return models.Exercise{}, err
	}
	id, err := r.newID()
	if err != nil {
		return models.Exercise{}, err
	}
	e := models.Exercise{ID: id, Name: draft.Name, Max1RM: draft.Max1RM, Group: draft.Group}
	list = append(list, e)
	if err := r.save(ctx, list); err != nil {
		return models.Exercise{}, err
	}
	return e, nil
}

// Update merges patch into the exercise with the given id. An unknown id is
// a no-op and nothing is written.
func (r *Repository) Update(ctx context.Context, id string, patch models.ExercisePatch) error {
	list, err := r.List(ctx)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil
	}
	list[i] = patch.Apply(list[i])
	return r.save(ctx, list)
}

// Delete removes the exercise with the given id if present and persists the
// resulting list.
func (r *Repository) Delete(ctx context.Context, id string) error {
	list, err := r.List(ctx)
	if err != nil {
		return err
	}
	list = slices.DeleteFunc(list, func(e models.Exercise) bool { return e.ID == id })
	return r.save(ctx, list)
}

// Replace overwrites the whole list.
func (r *Repository) Replace(ctx context.Context, list []models.Exercise) error {
	if list == nil {
		list = []models.Exercise{}
	}
	return r.save(ctx, list)
}

func (r *Repository) save(ctx context.Context, list []models.Exercise) error {
	return kv.SetJSON(ctx, r.store, models.KeyExercises, list)
}

func indexOf(list []models.Exercise, id string) int {
	return slices.IndexFunc(list, func(e models.Exercise) bool { return e.ID == id })
}

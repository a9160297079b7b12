package exercises

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
)

func sequentialIDs() IDFunc {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("exercise_%d", n), nil
	}
}

func newTestRepo() (*Repository, *kv.Memory) {
	store := kv.NewMemory()
	return New(store).WithIDFunc(sequentialIDs()), store
}

// TestListEmpty verifies a fresh profile lists no exercises and no error.
func TestListEmpty(t *testing.T) {
	r, _ := newTestRepo()
	list, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", list)
	}
}

// TestListCorruptReadsAsEmpty verifies corrupted persisted JSON falls back to no exercises.
func TestListCorruptReadsAsEmpty(t *testing.T) {
	r, store := newTestRepo()
	_ = store.Set(context.Background(), models.KeyExercises, []byte("[{broken"))
	list, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() = %v, want empty", list)
	}
}

// TestAddScenarioSquat verifies the Squat scenario: one record with its group and a fresh id.
func TestAddScenarioSquat(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemory())

	added, err := r.Add(ctx, models.ExerciseDraft{Name: "Squat", Max1RM: 300, Group: models.GroupLeg})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(added.ID, "exercise_") {
		t.Errorf("id = %q, want exercise_ prefix", added.ID)
	}

	list, err := r.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	if list[0] != added {
		t.Errorf("stored %+v, want %+v", list[0], added)
	}
	if list[0].Group != models.GroupLeg {
		t.Errorf("group = %q, want leg", list[0].Group)
	}
}

// TestAddGeneratesUniqueIDs verifies the default generator never repeats an id.
func TestAddGeneratesUniqueIDs(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemory())
	seen := map[string]bool{}
	for i := range 50 {
		e, err := r.Add(ctx, models.ExerciseDraft{Name: fmt.Sprintf("E%d", i), Max1RM: 100, Group: models.GroupArm})
		if err != nil {
			t.Fatal(err)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

// TestAddDeleteCount verifies list length equals adds minus deletes and each
// surviving id is retrievable, in insertion order.
func TestAddDeleteCount(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo()

	var ids []string
	for i := range 5 {
		e, err := r.Add(ctx, models.ExerciseDraft{Name: fmt.Sprintf("E%d", i), Max1RM: 100, Group: models.GroupBack})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID)
	}
	if err := r.Delete(ctx, ids[1]); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, ids[3]); err != nil {
		t.Fatal(err)
	}

	list, _ := r.List(ctx)
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	want := []string{ids[0], ids[2], ids[4]}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d].ID = %s, want %s", i, list[i].ID, id)
		}
		if _, err := r.Get(ctx, id); err != nil {
			t.Errorf("Get(%s): %v", id, err)
		}
	}
}

// TestUpdateUnknownIDNoOp verifies updating a missing id leaves the stored list untouched.
func TestUpdateUnknownIDNoOp(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRepo()
	_, _ = r.Add(ctx, models.ExerciseDraft{Name: "Bench", Max1RM: 200, Group: models.GroupChest})
	before, _, _ := store.Get(ctx, models.KeyExercises)

	name := "Renamed"
	if err := r.Update(ctx, "exercise_missing", models.ExercisePatch{Name: &name}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _, _ := store.Get(ctx, models.KeyExercises)
	if string(before) != string(after) {
		t.Errorf("stored list changed:\nbefore %s\nafter  %s", before, after)
	}
}

// TestUpdateMergesPatch verifies name and 1RM change while id and group stay.
func TestUpdateMergesPatch(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo()
	e, _ := r.Add(ctx, models.ExerciseDraft{Name: "Bench", Max1RM: 200, Group: models.GroupChest})

	maxRM := 210.0
	if err := r.Update(ctx, e.ID, models.ExercisePatch{Max1RM: &maxRM}); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := models.Exercise{ID: e.ID, Name: "Bench", Max1RM: 210, Group: models.GroupChest}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

// TestDeleteIdempotent verifies a second delete of the same id is a no-op.
func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo()
	e, _ := r.Add(ctx, models.ExerciseDraft{Name: "Row", Max1RM: 150, Group: models.GroupBack})
	_, _ = r.Add(ctx, models.ExerciseDraft{Name: "Curl", Max1RM: 60, Group: models.GroupArm})

	if err := r.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	first, _ := r.List(ctx)
	if err := r.Delete(ctx, e.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	second, _ := r.List(ctx)
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("lengths after deletes = %d, %d, want 1, 1", len(first), len(second))
	}
}

// TestGetNotFound verifies Get reports ErrNotFound for an unknown id.
func TestGetNotFound(t *testing.T) {
	r, _ := newTestRepo()
	_, err := r.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, []byte) error { return errors.New("quota exceeded") }

// TestAddWriteFailurePropagates verifies storage write errors reach the caller.
func TestAddWriteFailurePropagates(t *testing.T) {
	r := New(failingStore{kv.NewMemory()})
	_, err := r.Add(context.Background(), models.ExerciseDraft{Name: "Squat", Max1RM: 300, Group: models.GroupLeg})
	if err == nil {
		t.Fatal("expected write error")
	}
}

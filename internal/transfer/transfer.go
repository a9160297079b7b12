// Package transfer exports and imports a profile as a single JSON document
// holding the exercises, the trained groups and the current cycle.
package transfer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/exercises"
	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
)

//go:embed default_plan.json
var defaultPlanJSON []byte

// MalformedImportError rejects an import document. Nothing is written when
// it is returned.
type MalformedImportError struct {
	Missing []string
	Reason  string
}

func (e *MalformedImportError) Error() string {
	if len(e.Missing) > 0 {
		return "invalid data format: missing " + strings.Join(e.Missing, ", ")
	}
	return "invalid data format: " + e.Reason
}

// Transfer reads and writes whole-profile snapshots.
type Transfer struct {
	store     kv.Store
	exercises *exercises.Repository
	tracker   *cycle.Tracker
}

// New creates a Transfer over the given profile components.
func New(store kv.Store, repo *exercises.Repository, tracker *cycle.Tracker) *Transfer {
	return &Transfer{store: store, exercises: repo, tracker: tracker}
}

// Export returns the current profile state.
func (t *Transfer) Export(ctx context.Context) (*models.Snapshot, error) {
	list, err := t.exercises.List(ctx)
	if err != nil {
		return nil, err
	}
	st, err := t.tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		Exercises:     list,
		TrainedGroups: st.TrainedGroups,
		CurrentCycle:  st.CurrentCycle,
	}, nil
}

// Import validates snap and overwrites all three keys. When the store
// supports batches the keys are written in one transaction; otherwise they
// are written one after another and a failing write can leave a partial
// import behind.
func (t *Transfer) Import(ctx context.Context, snap *models.Snapshot) error {
	if err := Validate(snap, t.tracker.Catalog()); err != nil {
		return err
	}
	groups, err := json.Marshal(t.tracker.NormalizeGroups(snap.TrainedGroups))
	if err != nil {
		return fmt.Errorf("encoding trained groups: %w", err)
	}
	current, err := json.Marshal(snap.CurrentCycle)
	if err != nil {
		return fmt.Errorf("encoding current cycle: %w", err)
	}
	list := snap.Exercises
	if list == nil {
		list = []models.Exercise{}
	}
	exs, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}

	values := map[string][]byte{
		models.KeyTrainedGroups: groups,
		models.KeyCurrentCycle:  current,
		models.KeyExercises:     exs,
	}
	order := []string{models.KeyTrainedGroups, models.KeyCurrentCycle, models.KeyExercises}
	if err := kv.SetAll(ctx, t.store, values, order); err != nil {
		return fmt.Errorf("writing import: %w", err)
	}
	return nil
}

// LoadDefaultPlan overwrites the profile with the built-in starter plan.
func (t *Transfer) LoadDefaultPlan(ctx context.Context) (*models.Snapshot, error) {
	snap, err := DefaultPlan()
	if err != nil {
		return nil, err
	}
	if err := t.Import(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// DefaultPlan returns a fresh copy of the built-in starter plan.
func DefaultPlan() (*models.Snapshot, error) {
	return Decode(bytes.NewReader(defaultPlanJSON), models.DefaultCatalog())
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap *models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

var requiredKeys = []string{models.KeyExercises, models.KeyTrainedGroups, models.KeyCurrentCycle}

// Decode parses and validates an import document. All three top-level keys
// must be present and non-null.
func Decode(r io.Reader, catalog *models.Catalog) (*models.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedImportError{Reason: "not a JSON object"}
	}
	var missing []string
	for _, key := range requiredKeys {
		raw, ok := doc[key]
		if !ok || isEmptyValue(raw) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MalformedImportError{Missing: missing}
	}

	snap := &models.Snapshot{}
	if err := json.Unmarshal(doc[models.KeyExercises], &snap.Exercises); err != nil {
		return nil, &MalformedImportError{Reason: "exercises: " + err.Error()}
	}
	if err := json.Unmarshal(doc[models.KeyTrainedGroups], &snap.TrainedGroups); err != nil {
		return nil, &MalformedImportError{Reason: "trainedGroups: " + err.Error()}
	}
	if err := json.Unmarshal(doc[models.KeyCurrentCycle], &snap.CurrentCycle); err != nil {
		return nil, &MalformedImportError{Reason: "currentCycle: " + err.Error()}
	}
	if err := Validate(snap, catalog); err != nil {
		return nil, err
	}
	return snap, nil
}

func isEmptyValue(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == `""`
}

// Validate checks a snapshot against the catalog and the exercise field rules.
func Validate(snap *models.Snapshot, catalog *models.Catalog) error {
	if snap == nil {
		return &MalformedImportError{Missing: requiredKeys}
	}
	if !catalog.ValidCycle(snap.CurrentCycle) {
		return &MalformedImportError{Reason: fmt.Sprintf("unknown currentCycle %q", snap.CurrentCycle)}
	}
	for _, g := range snap.TrainedGroups {
		if !catalog.ValidGroup(g) {
			return &MalformedImportError{Reason: fmt.Sprintf("unknown trained group %q", g)}
		}
	}
	seen := make(map[string]bool, len(snap.Exercises))
	for i, e := range snap.Exercises {
		if e.ID == "" {
			return &MalformedImportError{Reason: fmt.Sprintf("exercise %d has no id", i)}
		}
		if seen[e.ID] {
			return &MalformedImportError{Reason: fmt.Sprintf("duplicate exercise id %q", e.ID)}
		}
		seen[e.ID] = true
		if strings.TrimSpace(e.Name) == "" {
			return &MalformedImportError{Reason: fmt.Sprintf("exercise %q has no name", e.ID)}
		}
		if err := models.CheckMax1RM(e.Max1RM); err != nil {
			return &MalformedImportError{Reason: fmt.Sprintf("exercise %q: %v", e.ID, err)}
		}
		if !catalog.ValidGroup(e.Group) {
			return &MalformedImportError{Reason: fmt.Sprintf("exercise %q has unknown group %q", e.ID, e.Group)}
		}
	}
	return nil
}

package transfer

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/exercises"
	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
)

type fixture struct {
	store    *kv.Memory
	repo     *exercises.Repository
	tracker  *cycle.Tracker
	transfer *Transfer
}

func newFixture() *fixture {
	store := kv.NewMemory()
	repo := exercises.New(store)
	tracker := cycle.New(store, models.DefaultCatalog(), cycle.PolicyArmExempt)
	return &fixture{store: store, repo: repo, tracker: tracker, transfer: New(store, repo, tracker)}
}

// rawState returns the three persisted values for byte-level comparisons.
func (f *fixture) rawState(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, k := range []string{models.KeyExercises, models.KeyTrainedGroups, models.KeyCurrentCycle} {
		v, _, err := f.store.Get(context.Background(), k)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(v))
	}
	return out
}

// TestRoundTrip verifies import(export()) reproduces the same state, including
// through the JSON encoding.
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture()
	_, _ = src.repo.Add(ctx, models.ExerciseDraft{Name: "Squat", Max1RM: 300, Group: models.GroupLeg})
	_, _ = src.repo.Add(ctx, models.ExerciseDraft{Name: "Curl", Max1RM: 62.5, Group: models.GroupArm})
	_, _ = src.tracker.FinishCycle(ctx)
	_, _ = src.tracker.MarkGroupDone(ctx, models.GroupBack)

	exported, err := src.transfer.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, exported); err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(&buf, models.DefaultCatalog())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	dst := newFixture()
	if err := dst.transfer.Import(ctx, decoded); err != nil {
		t.Fatal(err)
	}
	got, err := dst.transfer.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, exported) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, exported)
	}
	if got.CurrentCycle != models.CycleMedium {
		t.Errorf("cycle = %s, want medium", got.CurrentCycle)
	}
}

// TestImportMissingCurrentCycle verifies a document missing currentCycle is
// rejected and the stored state is unchanged.
func TestImportMissingCurrentCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, _ = f.repo.Add(ctx, models.ExerciseDraft{Name: "Bench", Max1RM: 200, Group: models.GroupChest})
	_, _ = f.tracker.MarkGroupDone(ctx, models.GroupChest)
	before := f.rawState(t)

	doc := `{"exercises": [], "trainedGroups": []}`
	_, err := Decode(strings.NewReader(doc), models.DefaultCatalog())
	var mie *MalformedImportError
	if !errors.As(err, &mie) {
		t.Fatalf("err = %v, want MalformedImportError", err)
	}
	if !slices.Equal(mie.Missing, []string{"currentCycle"}) {
		t.Errorf("missing = %v, want [currentCycle]", mie.Missing)
	}

	if err := f.transfer.Import(ctx, &models.Snapshot{Exercises: []models.Exercise{}}); err == nil {
		t.Fatal("Import accepted a snapshot without a cycle")
	}
	if after := f.rawState(t); !slices.Equal(before, after) {
		t.Errorf("state changed:\nbefore %v\nafter  %v", before, after)
	}
}

// TestImportRejectsInvalidExercises verifies exercises that could never be
// created through Add are refused before anything is written.
func TestImportRejectsInvalidExercises(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	before := f.rawState(t)

	snap := &models.Snapshot{
		Exercises: []models.Exercise{
			{ID: "a", Name: "", Max1RM: -300, Group: models.GroupLeg},
			{ID: "b", Name: "Squat", Max1RM: 1e300, Group: models.GroupLeg},
		},
		TrainedGroups: []models.Group{},
		CurrentCycle:  models.CycleLight,
	}
	err := f.transfer.Import(ctx, snap)
	var mie *MalformedImportError
	if !errors.As(err, &mie) {
		t.Fatalf("err = %v, want MalformedImportError", err)
	}
	if after := f.rawState(t); !slices.Equal(before, after) {
		t.Errorf("state changed:\nbefore %v\nafter  %v", before, after)
	}
}

// TestDecodeRejects verifies each malformed shape yields MalformedImportError.
func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `exercises`},
		{"array", `[]`},
		{"null exercises", `{"exercises": null, "trainedGroups": [], "currentCycle": "light"}`},
		{"empty cycle", `{"exercises": [], "trainedGroups": [], "currentCycle": ""}`},
		{"unknown cycle", `{"exercises": [], "trainedGroups": [], "currentCycle": "peak"}`},
		{"unknown group", `{"exercises": [], "trainedGroups": ["neck"], "currentCycle": "light"}`},
		{"exercise without id", `{"exercises": [{"name":"x","max1RM":1,"group":"leg"}], "trainedGroups": [], "currentCycle": "light"}`},
		{"duplicate ids", `{"exercises": [{"id":"a","name":"x","max1RM":1,"group":"leg"},{"id":"a","name":"y","max1RM":1,"group":"arm"}], "trainedGroups": [], "currentCycle": "light"}`},
		{"empty name", `{"exercises": [{"id":"a","name":" ","max1RM":100,"group":"leg"}], "trainedGroups": [], "currentCycle": "light"}`},
		{"negative max", `{"exercises": [{"id":"a","name":"Squat","max1RM":-300,"group":"leg"}], "trainedGroups": [], "currentCycle": "light"}`},
		{"zero max", `{"exercises": [{"id":"a","name":"Squat","max1RM":"0","group":"leg"}], "trainedGroups": [], "currentCycle": "light"}`},
		{"huge max", `{"exercises": [{"id":"b","name":"Squat","max1RM":1e300,"group":"leg"}], "trainedGroups": [], "currentCycle": "light"}`},
		{"exercises not array", `{"exercises": {}, "trainedGroups": [], "currentCycle": "light"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), models.DefaultCatalog())
			var mie *MalformedImportError
			if !errors.As(err, &mie) {
				t.Errorf("err = %v, want MalformedImportError", err)
			}
		})
	}
}

// TestDecodeBrowserExport verifies a document written by the browser app,
// with string 1RM values and empty arrays, is accepted.
func TestDecodeBrowserExport(t *testing.T) {
	doc := `{
  "exercises": [{"name": "Squat", "max1RM": "300", "group": "leg", "id": "exercise_1733000000000"}],
  "trainedGroups": ["leg", "leg"],
  "currentCycle": "heavy"
}`
	snap, err := Decode(strings.NewReader(doc), models.DefaultCatalog())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Exercises[0].Max1RM != 300 {
		t.Errorf("max1RM = %v, want 300", snap.Exercises[0].Max1RM)
	}

	f := newFixture()
	if err := f.transfer.Import(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	st, _ := f.tracker.State(context.Background())
	if !slices.Equal(st.TrainedGroups, []models.Group{models.GroupLeg}) {
		t.Errorf("trained = %v, want [leg]", st.TrainedGroups)
	}
}

// TestDefaultPlanCoversEveryGroup verifies the starter plan loads and has an
// exercise for each muscle group.
func TestDefaultPlanCoversEveryGroup(t *testing.T) {
	f := newFixture()
	snap, err := f.transfer.LoadDefaultPlan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range models.DefaultCatalog().Groups {
		if !slices.ContainsFunc(snap.Exercises, func(e models.Exercise) bool { return e.Group == g }) {
			t.Errorf("no default exercise for %s", g)
		}
	}
	list, _ := f.repo.List(context.Background())
	if len(list) != len(snap.Exercises) {
		t.Errorf("stored %d exercises, want %d", len(list), len(snap.Exercises))
	}
}

// TestEncodeIndents verifies exports are human-readable two-space JSON.
func TestEncodeIndents(t *testing.T) {
	var buf bytes.Buffer
	snap := &models.Snapshot{Exercises: []models.Exercise{}, TrainedGroups: []models.Group{}, CurrentCycle: models.CycleLight}
	if err := Encode(&buf, snap); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"exercises\": [],\n  \"trainedGroups\": [],\n  \"currentCycle\": \"light\"\n}\n"
	if buf.String() != want {
		t.Errorf("Encode = %q, want %q", buf.String(), want)
	}
}

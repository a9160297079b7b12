package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/training"
)

type memProfiles map[int]*kv.Memory

func (m memProfiles) Profile(userID int) kv.Store {
	if _, ok := m[userID]; !ok {
		m[userID] = kv.NewMemory()
	}
	return m[userID]
}

func newTestHandlers() *handlers {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := training.NewProfiles(memProfiles{}, training.Settings{
		Catalog: models.DefaultCatalog(),
		Policy:  cycle.PolicyArmExempt,
	}, log)
	return &handlers{ds: NewLocalSource(profiles), log: log}
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), ctx context.Context, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	var text strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	return res, text.String()
}

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestNewRegistersTools verifies the server builds with every tool.
func TestNewRegistersTools(t *testing.T) {
	s := New(newTestHandlers().ds, "test", slog.Default())
	if s == nil {
		t.Fatal("New returned nil")
	}
}

// TestExerciseTools walks add, compute_target_weight, update and list.
func TestExerciseTools(t *testing.T) {
	h := newTestHandlers()
	ctx := context.Background()

	res, text := call(t, h.addExercise, ctx, map[string]any{"name": "Squat", "max1RM": 300.0, "group": "leg"})
	if res.IsError {
		t.Fatalf("add_exercise failed: %s", text)
	}
	var e models.Exercise
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		t.Fatalf("decode exercise: %v (%s)", err, text)
	}

	_, text = call(t, h.computeTargetWeight, ctx, map[string]any{"id": e.ID})
	var tw models.TargetWeight
	if err := json.Unmarshal([]byte(text), &tw); err != nil {
		t.Fatalf("decode weight: %v (%s)", err, text)
	}
	if tw.Weight != 180 || tw.Cycle != models.CycleLight {
		t.Errorf("weight = %+v, want 180 light", tw)
	}

	res, _ = call(t, h.updateExercise, ctx, map[string]any{"id": e.ID, "max1RM": 200.0})
	if res.IsError {
		t.Fatal("update_exercise failed")
	}
	_, text = call(t, h.computeTargetWeight, ctx, map[string]any{"id": e.ID, "cycle": "heavy"})
	if err := json.Unmarshal([]byte(text), &tw); err != nil {
		t.Fatal(err)
	}
	if tw.Weight != 170 {
		t.Errorf("heavy weight after update = %d, want 170", tw.Weight)
	}

	if res, _ := call(t, h.updateExercise, ctx, map[string]any{"id": e.ID}); !res.IsError {
		t.Error("update without fields should fail")
	}
	if res, _ := call(t, h.addExercise, ctx, map[string]any{"name": "Curl", "max1RM": 40.0, "group": "neck"}); !res.IsError {
		t.Error("add with unknown group should fail")
	}

	_, text = call(t, h.listExercises, ctx, nil)
	var list []models.Exercise
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Max1RM != 200 {
		t.Errorf("list = %+v", list)
	}
}

// TestFinishCycleTool verifies the confirmation round trip through the tool.
func TestFinishCycleTool(t *testing.T) {
	h := newTestHandlers()
	ctx := WithUserID(context.Background(), 7)

	if res, _ := call(t, h.markGroupDone, ctx, map[string]any{"group": "leg"}); res.IsError {
		t.Fatal("mark_group_done failed")
	}

	res, text := call(t, h.finishCycle, ctx, nil)
	if !res.IsError || !strings.Contains(text, "confirm=true") {
		t.Fatalf("unconfirmed finish = %v %q", res.IsError, text)
	}

	res, text = call(t, h.finishCycle, ctx, map[string]any{"confirm": true})
	if res.IsError {
		t.Fatalf("confirmed finish failed: %s", text)
	}
	var fr cycle.FinishResult
	if err := json.Unmarshal([]byte(text), &fr); err != nil {
		t.Fatal(err)
	}
	if fr.Next != models.CycleMedium || len(fr.Cleared) != 1 {
		t.Errorf("finish = %+v", fr)
	}

	// another user is untouched
	_, text = call(t, h.getTrainingState, context.Background(), nil)
	var st training.Status
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatal(err)
	}
	if st.CurrentCycle != models.CycleLight {
		t.Errorf("user 1 cycle = %s, want light", st.CurrentCycle)
	}
}

// TestExportResource verifies the export resource returns the snapshot document.
func TestExportResource(t *testing.T) {
	h := newTestHandlers()
	var req mcp.ReadResourceRequest
	req.Params.URI = "repcycle://export"

	contents, err := h.export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents = %T", contents[0])
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(tc.Text), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.CurrentCycle != models.CycleLight || snap.Exercises == nil {
		t.Errorf("snapshot = %+v", snap)
	}
}

// TestToolEnumsFollowCatalog verifies group and cycle enums come from the catalog.
func TestToolEnumsFollowCatalog(t *testing.T) {
	c := models.DefaultCatalog()
	tests := []struct {
		name  string
		tool  mcp.Tool
		param string
		want  []string
	}{
		{"add_exercise group", toolAddExercise, "group", c.GroupNames()},
		{"mark_group_done group", toolMarkGroupDone, "group", c.GroupNames()},
		{"compute_target_weight cycle", toolComputeTargetWeight, "cycle", c.CycleNames()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prop, ok := tt.tool.InputSchema.Properties[tt.param].(map[string]any)
			if !ok {
				t.Fatalf("property %s missing", tt.param)
			}
			got, _ := prop["enum"].([]string)
			if !slices.Equal(got, tt.want) {
				t.Errorf("enum = %v, want %v", got, tt.want)
			}
		})
	}
}

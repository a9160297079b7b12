package mcp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/training"
)

// schemaCatalog supplies the group and cycle enums of the tool schemas.
var schemaCatalog = models.DefaultCatalog()

var (
	groupNames = schemaCatalog.GroupNames()
	cycleNames = schemaCatalog.CycleNames()
)

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List all exercises with id, name, muscle group and one-rep max (max1RM)."),
)

var toolAddExercise = mcp.NewTool("add_exercise",
	mcp.WithDescription("Add an exercise. Returns the stored exercise with its generated id."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exercise name, e.g. Squat")),
	mcp.WithNumber("max1RM", mcp.Required(), mcp.Description("One-rep max in the user's weight unit")),
	mcp.WithString("group", mcp.Required(), mcp.Description("Muscle group"), mcp.Enum(groupNames...)),
)

var toolUpdateExercise = mcp.NewTool("update_exercise",
	mcp.WithDescription("Change an exercise's name and/or one-rep max. The id and group never change. Unknown ids are ignored."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Exercise id")),
	mcp.WithString("name", mcp.Description("New name")),
	mcp.WithNumber("max1RM", mcp.Description("New one-rep max")),
)

var toolDeleteExercise = mcp.NewTool("delete_exercise",
	mcp.WithDescription("Delete an exercise. Deleting an unknown id is not an error."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Exercise id")),
)

var toolGetTrainingState = mcp.NewTool("get_training_state",
	mcp.WithDescription("Current cycle, the muscle groups already trained in it, and the groups still required before the cycle is complete."),
)

var toolMarkGroupDone = mcp.NewTool("mark_group_done",
	mcp.WithDescription("Record a muscle group as trained in the current cycle. Marking it twice has no effect."),
	mcp.WithString("group", mcp.Required(), mcp.Description("Muscle group"), mcp.Enum(groupNames...)),
)

var toolMarkGroupRetrain = mcp.NewTool("mark_group_retrain",
	mcp.WithDescription("Remove a muscle group from the trained set so it is trained again this cycle."),
	mcp.WithString("group", mcp.Required(), mcp.Description("Muscle group"), mcp.Enum(groupNames...)),
)

var toolFinishCycle = mcp.NewTool("finish_cycle",
	mcp.WithDescription("Advance to the next cycle ("+strings.Join(append(slices.Clone(cycleNames), cycleNames[0]), " → ")+") and clear the trained groups. Fails while groups are untrained unless confirm is true; ask the user before confirming."),
	mcp.WithBoolean("confirm", mcp.Description("Finish even though some groups are untrained")),
)

var toolGetTrainingPlan = mcp.NewTool("get_training_plan",
	mcp.WithDescription("Training plan for the current cycle: per muscle group, whether it is trained and the target weight, rep range and sets of each exercise."),
)

var toolComputeTargetWeight = mcp.NewTool("compute_target_weight",
	mcp.WithDescription("Target working weight of an exercise: its one-rep max times the cycle's percentage, rounded to a whole number."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Exercise id")),
	mcp.WithString("cycle", mcp.Description("Cycle to compute for. Defaults to the current cycle."), mcp.Enum(cycleNames...)),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.ListExercises(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(list)
}

func (h *handlers) addExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name parameter is required"), nil
	}
	max1RM, err := req.RequireFloat("max1RM")
	if err != nil {
		return mcp.NewToolResultError("max1RM parameter is required"), nil
	}
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError("group parameter is required"), nil
	}

	e, err := h.ds.AddExercise(ctx, UserIDFromContext(ctx), models.ExerciseDraft{
		Name:   name,
		Max1RM: max1RM,
		Group:  models.Group(group),
	})
	if err != nil {
		return h.failed("add_exercise", err), nil
	}
	return jsonResult(e)
}

func (h *handlers) updateExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	var patch models.ExercisePatch
	args := req.GetArguments()
	if _, ok := args["name"]; ok {
		name := req.GetString("name", "")
		patch.Name = &name
	}
	if _, ok := args["max1RM"]; ok {
		max1RM := req.GetFloat("max1RM", 0)
		patch.Max1RM = &max1RM
	}
	if patch.Name == nil && patch.Max1RM == nil {
		return mcp.NewToolResultError("nothing to update: pass name and/or max1RM"), nil
	}

	if err := h.ds.UpdateExercise(ctx, UserIDFromContext(ctx), id, patch); err != nil {
		return h.failed("update_exercise", err), nil
	}
	return mcp.NewToolResultText("updated " + id), nil
}

func (h *handlers) deleteExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	if err := h.ds.DeleteExercise(ctx, UserIDFromContext(ctx), id); err != nil {
		return h.failed("delete_exercise", err), nil
	}
	return mcp.NewToolResultText("deleted " + id), nil
}

func (h *handlers) getTrainingState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ds.TrainingStatus(ctx, UserIDFromContext(ctx))
	if err != nil {
		return h.failed("get_training_state", err), nil
	}
	return jsonResult(st)
}

func (h *handlers) markGroupDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError("group parameter is required"), nil
	}
	groups, err := h.ds.MarkGroupDone(ctx, UserIDFromContext(ctx), models.Group(group))
	if err != nil {
		return h.failed("mark_group_done", err), nil
	}
	return jsonResult(map[string]any{"trainedGroups": groups})
}

func (h *handlers) markGroupRetrain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError("group parameter is required"), nil
	}
	groups, err := h.ds.MarkGroupRetrain(ctx, UserIDFromContext(ctx), models.Group(group))
	if err != nil {
		return h.failed("mark_group_retrain", err), nil
	}
	return jsonResult(map[string]any{"trainedGroups": groups})
}

func (h *handlers) finishCycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.ds.FinishCycle(ctx, UserIDFromContext(ctx), req.GetBool("confirm", false))
	var ue *training.UntrainedError
	if errors.As(err, &ue) {
		return mcp.NewToolResultError(fmt.Sprintf("%s. Ask the user, then call finish_cycle with confirm=true to finish anyway.", ue.Error())), nil
	}
	if err != nil {
		return h.failed("finish_cycle", err), nil
	}
	return jsonResult(res)
}

func (h *handlers) getTrainingPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plan, err := h.ds.TrainingPlan(ctx, UserIDFromContext(ctx))
	if err != nil {
		return h.failed("get_training_plan", err), nil
	}
	return jsonResult(plan)
}

func (h *handlers) computeTargetWeight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	c := models.Cycle(req.GetString("cycle", ""))

	tw, err := h.ds.TargetWeight(ctx, UserIDFromContext(ctx), id, c)
	if err != nil {
		return h.failed("compute_target_weight", err), nil
	}
	return jsonResult(tw)
}

// failed logs err and turns it into a tool error the model can read.
func (h *handlers) failed(tool string, err error) *mcp.CallToolResult {
	h.log.Warn("mcp "+tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

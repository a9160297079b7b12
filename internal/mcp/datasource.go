package mcp

import (
	"context"

	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/training"
)

// DataSource abstracts the data layer for MCP tools. LocalSource (direct
// storage access) and HTTPClient (remote via REST API) both satisfy it.
type DataSource interface {
	Catalog(ctx context.Context) (*models.Catalog, error)
	ListExercises(ctx context.Context, userID int) ([]models.Exercise, error)
	AddExercise(ctx context.Context, userID int, draft models.ExerciseDraft) (models.Exercise, error)
	UpdateExercise(ctx context.Context, userID int, id string, patch models.ExercisePatch) error
	DeleteExercise(ctx context.Context, userID int, id string) error
	TrainingStatus(ctx context.Context, userID int) (*training.Status, error)
	MarkGroupDone(ctx context.Context, userID int, group models.Group) ([]models.Group, error)
	MarkGroupRetrain(ctx context.Context, userID int, group models.Group) ([]models.Group, error)
	FinishCycle(ctx context.Context, userID int, confirmed bool) (*cycle.FinishResult, error)
	TrainingPlan(ctx context.Context, userID int) (*models.Plan, error)
	TargetWeight(ctx context.Context, userID int, id string, c models.Cycle) (*models.TargetWeight, error)
	Export(ctx context.Context, userID int) (*models.Snapshot, error)
}

// LocalSource serves tools straight from the profile store.
type LocalSource struct {
	profiles *training.Profiles
}

// Compile-time check: *LocalSource satisfies DataSource.
var _ DataSource = (*LocalSource)(nil)

// NewLocalSource creates a LocalSource over profiles.
func NewLocalSource(profiles *training.Profiles) *LocalSource {
	return &LocalSource{profiles: profiles}
}

func (l *LocalSource) Catalog(context.Context) (*models.Catalog, error) {
	return l.profiles.Catalog(), nil
}

func (l *LocalSource) ListExercises(ctx context.Context, userID int) ([]models.Exercise, error) {
	return l.profiles.Service(userID).Exercises.List(ctx)
}

func (l *LocalSource) AddExercise(ctx context.Context, userID int, draft models.ExerciseDraft) (models.Exercise, error) {
	defer l.profiles.Lock(userID)()
	return l.profiles.Service(userID).AddExercise(ctx, draft)
}

func (l *LocalSource) UpdateExercise(ctx context.Context, userID int, id string, patch models.ExercisePatch) error {
	defer l.profiles.Lock(userID)()
	return l.profiles.Service(userID).UpdateExercise(ctx, id, patch)
}

func (l *LocalSource) DeleteExercise(ctx context.Context, userID int, id string) error {
	defer l.profiles.Lock(userID)()
	return l.profiles.Service(userID).DeleteExercise(ctx, id)
}

func (l *LocalSource) TrainingStatus(ctx context.Context, userID int) (*training.Status, error) {
	return l.profiles.Service(userID).Status(ctx)
}

func (l *LocalSource) MarkGroupDone(ctx context.Context, userID int, group models.Group) ([]models.Group, error) {
	defer l.profiles.Lock(userID)()
	return l.profiles.Service(userID).MarkGroupDone(ctx, group)
}

func (l *LocalSource) MarkGroupRetrain(ctx context.Context, userID int, group models.Group) ([]models.Group, error) {
	defer l.profiles.Lock(userID)()
	return l.profiles.Service(userID).MarkGroupRetrain(ctx, group)
}

func (l *LocalSource) FinishCycle(ctx context.Context, userID int, confirmed bool) (*cycle.FinishResult, error) {
	defer l.profiles.Lock(userID)()
	return l.profiles.Service(userID).Finish(ctx, confirmed)
}

func (l *LocalSource) TrainingPlan(ctx context.Context, userID int) (*models.Plan, error) {
	return l.profiles.Service(userID).Plan(ctx)
}

func (l *LocalSource) TargetWeight(ctx context.Context, userID int, id string, c models.Cycle) (*models.TargetWeight, error) {
	w, used, err := l.profiles.Service(userID).TargetWeight(ctx, id, c)
	if err != nil {
		return nil, err
	}
	return &models.TargetWeight{ExerciseID: id, Cycle: used, Weight: w}, nil
}

func (l *LocalSource) Export(ctx context.Context, userID int) (*models.Snapshot, error) {
	return l.profiles.Service(userID).Transfer.Export(ctx)
}

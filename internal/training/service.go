// Package training composes the exercise repository, the cycle tracker and
// snapshot transfer for one profile, adding the confirmation gates the
// interfaces rely on.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/exercises"
	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/transfer"
)

// ErrConfirmOverwrite is returned when loading the default plan would replace
// existing exercises and the caller has not confirmed.
var ErrConfirmOverwrite = errors.New("loading the default plan overwrites existing exercises")

// ErrInvalidExercise wraps draft and patch validation failures.
var ErrInvalidExercise = errors.New("invalid exercise")

// UntrainedError is returned by Finish when required groups are not done and
// the caller has not confirmed.
type UntrainedError struct {
	Groups []models.Group
}

func (e *UntrainedError) Error() string {
	names := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		names[i] = string(g)
	}
	return "untrained groups remain: " + strings.Join(names, ", ")
}

// Settings are shared by every profile's service.
type Settings struct {
	Catalog *models.Catalog
	Policy  cycle.Policy
}

// Service is the training API of one profile.
type Service struct {
	Exercises *exercises.Repository
	Tracker   *cycle.Tracker
	Transfer  *transfer.Transfer

	log *slog.Logger
}

// New builds a service over a profile store.
func New(store kv.Store, settings Settings, log *slog.Logger) *Service {
	repo := exercises.New(store)
	tracker := cycle.New(store, settings.Catalog, settings.Policy)
	return &Service{
		Exercises: repo,
		Tracker:   tracker,
		Transfer:  transfer.New(store, repo, tracker),
		log:       log,
	}
}

// Status is the training state plus the groups still required by the policy.
type Status struct {
	models.TrainingState
	Untrained []models.Group `json:"untrained"`
	Policy    string         `json:"policy"`
}

// Status returns the current state and what remains before the cycle is complete.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st, err := s.Tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	untrained := s.Tracker.UntrainedGroups(st.TrainedGroups)
	if untrained == nil {
		untrained = []models.Group{}
	}
	return &Status{TrainingState: st, Untrained: untrained, Policy: s.Tracker.Policy().Name}, nil
}

// AddExercise validates draft and stores it.
func (s *Service) AddExercise(ctx context.Context, draft models.ExerciseDraft) (models.Exercise, error) {
	if err := draft.Validate(s.Tracker.Catalog()); err != nil {
		return models.Exercise{}, fmt.Errorf("%w: %w", ErrInvalidExercise, err)
	}
	e, err := s.Exercises.Add(ctx, draft)
	if err != nil {
		return models.Exercise{}, err
	}
	s.log.Info("exercise added", "id", e.ID, "group", e.Group)
	return e, nil
}

// UpdateExercise validates patch and merges it. Unknown ids are ignored.
func (s *Service) UpdateExercise(ctx context.Context, id string, patch models.ExercisePatch) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExercise, err)
	}
	return s.Exercises.Update(ctx, id, patch)
}

// DeleteExercise removes exercise id. Unknown ids are ignored.
func (s *Service) DeleteExercise(ctx context.Context, id string) error {
	if err := s.Exercises.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("exercise deleted", "id", id)
	return nil
}

// MarkGroupDone records group as trained in the current cycle.
func (s *Service) MarkGroupDone(ctx context.Context, group models.Group) ([]models.Group, error) {
	groups, err := s.Tracker.MarkGroupDone(ctx, group)
	if err != nil {
		return nil, err
	}
	s.log.Info("group done", "group", group)
	return groups, nil
}

// MarkGroupRetrain removes group from the trained set.
func (s *Service) MarkGroupRetrain(ctx context.Context, group models.Group) ([]models.Group, error) {
	groups, err := s.Tracker.MarkGroupRetrain(ctx, group)
	if err != nil {
		return nil, err
	}
	s.log.Info("group retrain", "group", group)
	return groups, nil
}

// TargetWeight returns the target weight for exercise id in cycle c. An
// empty c uses the current cycle.
func (s *Service) TargetWeight(ctx context.Context, id string, c models.Cycle) (int, models.Cycle, error) {
	e, err := s.Exercises.Get(ctx, id)
	if err != nil {
		return 0, "", err
	}
	if c == "" {
		st, err := s.Tracker.State(ctx)
		if err != nil {
			return 0, "", err
		}
		c = st.CurrentCycle
	}
	w, err := s.Tracker.ComputeTargetWeight(e, c)
	if err != nil {
		return 0, "", err
	}
	return w, c, nil
}

// Plan returns every group in catalog order with the prescriptions for its
// exercises in the current cycle.
func (s *Service) Plan(ctx context.Context) (*models.Plan, error) {
	st, err := s.Tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	params, err := s.Tracker.Catalog().CycleParams(st.CurrentCycle)
	if err != nil {
		return nil, err
	}
	list, err := s.Exercises.List(ctx)
	if err != nil {
		return nil, err
	}

	trained := make(map[models.Group]bool, len(st.TrainedGroups))
	for _, g := range st.TrainedGroups {
		trained[g] = true
	}

	plan := &models.Plan{Cycle: st.CurrentCycle, Params: params}
	for _, g := range s.Tracker.Catalog().Groups {
		gp := models.GroupPlan{Group: g, Trained: trained[g], Prescriptions: []models.Prescription{}}
		for _, e := range list {
			if e.Group != g {
				continue
			}
			p, err := s.Tracker.Prescribe(e, st.CurrentCycle)
			if err != nil {
				return nil, err
			}
			gp.Prescriptions = append(gp.Prescriptions, p)
		}
		plan.Groups = append(plan.Groups, gp)
	}
	return plan, nil
}

// Finish advances the cycle. Without confirmation it refuses with an
// UntrainedError while the policy reports untrained groups.
func (s *Service) Finish(ctx context.Context, confirmed bool) (*cycle.FinishResult, error) {
	if !confirmed {
		st, err := s.Tracker.State(ctx)
		if err != nil {
			return nil, err
		}
		if untrained := s.Tracker.UntrainedGroups(st.TrainedGroups); len(untrained) > 0 {
			return nil, &UntrainedError{Groups: untrained}
		}
	}
	res, err := s.Tracker.FinishCycle(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("cycle finished", "previous", res.Previous, "next", res.Next, "cleared", len(res.Cleared))
	return res, nil
}

// LoadDefaultPlan replaces the profile with the starter plan. Without
// confirmation it refuses with ErrConfirmOverwrite when exercises exist.
func (s *Service) LoadDefaultPlan(ctx context.Context, confirmed bool) (*models.Snapshot, error) {
	if !confirmed {
		list, err := s.Exercises.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			return nil, ErrConfirmOverwrite
		}
	}
	snap, err := s.Transfer.LoadDefaultPlan(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("default plan loaded", "exercises", len(snap.Exercises))
	return snap, nil
}

// Import replaces the profile with snap.
func (s *Service) Import(ctx context.Context, snap *models.Snapshot) error {
	if err := s.Transfer.Import(ctx, snap); err != nil {
		return err
	}
	s.log.Info("snapshot imported", "exercises", len(snap.Exercises), "cycle", snap.CurrentCycle)
	return nil
}

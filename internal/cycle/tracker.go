// Package cycle tracks a profile's position in the training-cycle rotation
// and which muscle groups are done in the active cycle.
package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
)

// ErrUnknownGroup is returned when a group is not in the catalog.
var ErrUnknownGroup = errors.New("unknown muscle group")

// Policy decides which groups must be trained before a cycle counts as
// complete.
type Policy struct {
	Name   string
	Exempt []models.Group
}

var (
	// PolicyArmExempt ignores the arm group when checking completeness.
	PolicyArmExempt = Policy{Name: "arm_exempt", Exempt: []models.Group{models.GroupArm}}
	// PolicyStrict requires every group.
	PolicyStrict = Policy{Name: "strict"}
)

// ParsePolicy maps a config value to a Policy. Empty selects arm_exempt.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyArmExempt.Name:
		return PolicyArmExempt, nil
	case PolicyStrict.Name:
		return PolicyStrict, nil
	}
	return Policy{}, fmt.Errorf("unknown completion policy %q", name)
}

// FinishResult describes a cycle advance.
type FinishResult struct {
	Previous models.Cycle   `json:"previous"`
	Next     models.Cycle   `json:"next"`
	Cleared  []models.Group `json:"cleared"`
}

// Tracker owns the current cycle and trained groups of one profile.
type Tracker struct {
	store   kv.Store
	catalog *models.Catalog
	policy  Policy
}

// New creates a tracker over store.
func New(store kv.Store, catalog *models.Catalog, policy Policy) *Tracker {
	return &Tracker{store: store, catalog: catalog, policy: policy}
}

// Catalog returns the catalog the tracker was built with.
func (t *Tracker) Catalog() *models.Catalog { return t.catalog }

// Policy returns the completion policy.
func (t *Tracker) Policy() Policy { return t.policy }

// State loads the persisted state. A missing or unrecognized cycle reads as
// the first cycle of the rotation; missing or unreadable groups read as
// none. Unknown and repeated groups are dropped.
func (t *Tracker) State(ctx context.Context) (models.TrainingState, error) {
	current, err := t.loadCycle(ctx)
	if err != nil {
		return models.TrainingState{}, err
	}
	groups, err := t.loadGroups(ctx)
	if err != nil {
		return models.TrainingState{}, err
	}
	return models.TrainingState{CurrentCycle: current, TrainedGroups: groups}, nil
}

func (t *Tracker) loadCycle(ctx context.Context) (models.Cycle, error) {
	raw, ok, err := t.store.Get(ctx, models.KeyCurrentCycle)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", models.KeyCurrentCycle, err)
	}
	if !ok {
		return t.catalog.FirstCycle(), nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		// Older data stored the bare cycle name.
		name = strings.TrimSpace(string(raw))
	}
	c := models.Cycle(name)
	if !t.catalog.ValidCycle(c) {
		return t.catalog.FirstCycle(), nil
	}
	return c, nil
}

func (t *Tracker) loadGroups(ctx context.Context) ([]models.Group, error) {
	var stored []models.Group
	if _, err := kv.GetJSON(ctx, t.store, models.KeyTrainedGroups, &stored); err != nil {
		return nil, err
	}
	return t.NormalizeGroups(stored), nil
}

// NormalizeGroups drops unknown groups and duplicates, keeping first-seen order.
func (t *Tracker) NormalizeGroups(groups []models.Group) []models.Group {
	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		if t.catalog.ValidGroup(g) && !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	return out
}

// MarkGroupDone adds group to the trained set. Marking a group that is
// already done changes nothing and writes nothing.
func (t *Tracker) MarkGroupDone(ctx context.Context, group models.Group) ([]models.Group, error) {
	if !t.catalog.ValidGroup(group) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	groups, err := t.loadGroups(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(groups, group) {
		return groups, nil
	}
	groups = append(groups, group)
	if err := kv.SetJSON(ctx, t.store, models.KeyTrainedGroups, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// MarkGroupRetrain removes group from the trained set.
func (t *Tracker) MarkGroupRetrain(ctx context.Context, group models.Group) ([]models.Group, error) {
	if !t.catalog.ValidGroup(group) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	groups, err := t.loadGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups = slices.DeleteFunc(groups, func(g models.Group) bool { return g == group })
	if err := kv.SetJSON(ctx, t.store, models.KeyTrainedGroups, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// FinishCycle advances to the next cycle in the rotation and clears the
// trained groups. It does not check completeness; callers consult
// HasUntrainedGroups first and confirm with the user.
func (t *Tracker) FinishCycle(ctx context.Context) (*FinishResult, error) {
	state, err := t.State(ctx)
	if err != nil {
		return nil, err
	}
	next, err := t.catalog.Next(state.CurrentCycle)
	if err != nil {
		return nil, err
	}
	if err := t.writeState(ctx, next, []models.Group{}); err != nil {
		return nil, err
	}
	return &FinishResult{
		Previous: state.CurrentCycle,
		Next:     next,
		Cleared:  state.TrainedGroups,
	}, nil
}

// SetState overwrites both keys.
func (t *Tracker) SetState(ctx context.Context, state models.TrainingState) error {
	if !t.catalog.ValidCycle(state.CurrentCycle) {
		return &models.InvalidCycleError{Name: string(state.CurrentCycle)}
	}
	return t.writeState(ctx, state.CurrentCycle, t.NormalizeGroups(state.TrainedGroups))
}

// writeState stores cycle and groups together: in one batch when the store
// supports it, otherwise cycle first so a failed write never drops progress
// without advancing.
func (t *Tracker) writeState(ctx context.Context, c models.Cycle, groups []models.Group) error {
	current, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", models.KeyCurrentCycle, err)
	}
	trained, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", models.KeyTrainedGroups, err)
	}
	values := map[string][]byte{
		models.KeyCurrentCycle:  current,
		models.KeyTrainedGroups: trained,
	}
	return kv.SetAll(ctx, t.store, values, []string{models.KeyCurrentCycle, models.KeyTrainedGroups})
}

// UntrainedGroups returns the catalog groups missing from trained, skipping
// groups the policy exempts.
func (t *Tracker) UntrainedGroups(trained []models.Group) []models.Group {
	var out []models.Group
	for _, g := range t.catalog.Groups {
		if slices.Contains(t.policy.Exempt, g) || slices.Contains(trained, g) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// HasUntrainedGroups reports whether finishing now would skip a required group.
func (t *Tracker) HasUntrainedGroups(trained []models.Group) bool {
	return len(t.UntrainedGroups(trained)) > 0
}

// ComputeTargetWeight returns max1RM scaled by the cycle's percentage,
// rounded half up to a whole unit.
func (t *Tracker) ComputeTargetWeight(e models.Exercise, c models.Cycle) (int, error) {
	p, err := t.catalog.CycleParams(c)
	if err != nil {
		return 0, err
	}
	return roundHalfUp(e.Max1RM * float64(p.RM) / 100), nil
}

// Prescribe returns the target weight, rep range and set count for e in c.
func (t *Tracker) Prescribe(e models.Exercise, c models.Cycle) (models.Prescription, error) {
	p, err := t.catalog.CycleParams(c)
	if err != nil {
		return models.Prescription{}, err
	}
	return models.Prescription{
		Exercise:     e,
		Cycle:        c,
		TargetWeight: roundHalfUp(e.Max1RM * float64(p.RM) / 100),
		Reps:         p.Reps,
		Sets:         p.Sets,
	}, nil
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

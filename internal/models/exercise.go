package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Persisted keys in a profile store.
const (
	KeyExercises     = "exercises"
	KeyTrainedGroups = "trainedGroups"
	KeyCurrentCycle  = "currentCycle"
)

// Exercise is a stored exercise with its one-repetition maximum.
type Exercise struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Max1RM float64 `json:"max1RM"`
	Group  Group   `json:"group"`
}

// UnmarshalJSON accepts max1RM as a number or a numeric string. Exports from
// the browser app stored the raw form value, which is a string.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string          `json:"id"`
		Name   string          `json:"name"`
		Max1RM json.RawMessage `json:"max1RM"`
		Group  Group           `json:"group"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	weight, err := parseWeight(raw.Max1RM)
	if err != nil {
		return fmt.Errorf("exercise %q max1RM: %w", raw.ID, err)
	}
	*e = Exercise{ID: raw.ID, Name: raw.Name, Max1RM: weight, Group: raw.Group}
	return nil
}

func parseWeight(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// MaxOneRepMax bounds max1RM so target weights stay representable.
const MaxOneRepMax = 10000

// CheckMax1RM rejects non-positive, non-finite and implausibly large values.
func CheckMax1RM(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return errors.New("max1RM must be a positive number")
	}
	if v > MaxOneRepMax {
		return fmt.Errorf("max1RM must not exceed %d", MaxOneRepMax)
	}
	return nil
}

// ExerciseDraft is the input for creating an exercise.
type ExerciseDraft struct {
	Name   string  `json:"name"`
	Max1RM float64 `json:"max1RM"`
	Group  Group   `json:"group"`
}

// Validate checks that all three fields are set and the group is known.
// Callers validate before handing a draft to the repository.
func (d ExerciseDraft) Validate(c *Catalog) error {
	var errs []error
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if err := CheckMax1RM(d.Max1RM); err != nil {
		errs = append(errs, err)
	}
	if d.Group == "" {
		errs = append(errs, errors.New("group is required"))
	} else if !c.ValidGroup(d.Group) {
		errs = append(errs, fmt.Errorf("unknown group %q", d.Group))
	}
	return errors.Join(errs...)
}

// ExercisePatch holds the mutable fields of an exercise. Nil fields are left
// unchanged.
type ExercisePatch struct {
	Name   *string  `json:"name,omitempty"`
	Max1RM *float64 `json:"max1RM,omitempty"`
}

// Validate rejects patches that would blank the name or zero the 1RM.
func (p ExercisePatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.New("name must not be empty")
	}
	if p.Max1RM != nil {
		return CheckMax1RM(*p.Max1RM)
	}
	return nil
}

// Apply returns e with the patch merged in. ID and group never change.
func (p ExercisePatch) Apply(e Exercise) Exercise {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Max1RM != nil {
		e.Max1RM = *p.Max1RM
	}
	return e
}

package models

import (
	"fmt"
	"slices"
)

// Group is a muscle group an exercise trains.
type Group string

const (
	GroupLeg      Group = "leg"
	GroupChest    Group = "chest"
	GroupBack     Group = "back"
	GroupShoulder Group = "shoulder"
	GroupArm      Group = "arm"
)

// Cycle is a periodization phase.
type Cycle string

const (
	CycleLight  Cycle = "light"
	CycleMedium Cycle = "medium"
	CycleHeavy  Cycle = "heavy"
	CycleDeload Cycle = "deload"
)

// RepRange is an inclusive repetition range.
type RepRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// CycleParams defines the intensity and volume of a cycle.
type CycleParams struct {
	RM   int      `json:"rm"` // percent of 1RM
	Reps RepRange `json:"reps"`
	Sets int      `json:"sets"`
}

// InvalidCycleError is returned when a cycle name is not in the catalog.
type InvalidCycleError struct {
	Name string
}

func (e *InvalidCycleError) Error() string {
	return fmt.Sprintf("invalid cycle %q", e.Name)
}

// Catalog is the fixed configuration shared by the exercise repository and
// the cycle tracker: the muscle groups, the cycle rotation and the
// parameters of each cycle.
type Catalog struct {
	Groups   []Group               `json:"groups"`
	Rotation []Cycle               `json:"rotation"`
	Params   map[Cycle]CycleParams `json:"params"`
}

// DefaultCatalog returns the standard five groups and four-cycle rotation.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Groups:   []Group{GroupLeg, GroupChest, GroupBack, GroupShoulder, GroupArm},
		Rotation: []Cycle{CycleLight, CycleMedium, CycleHeavy, CycleDeload},
		Params: map[Cycle]CycleParams{
			CycleLight:  {RM: 60, Reps: RepRange{Min: 12, Max: 15}, Sets: 6},
			CycleMedium: {RM: 70, Reps: RepRange{Min: 8, Max: 10}, Sets: 6},
			CycleHeavy:  {RM: 85, Reps: RepRange{Min: 3, Max: 5}, Sets: 5},
			CycleDeload: {RM: 40, Reps: RepRange{Min: 25, Max: 30}, Sets: 6},
		},
	}
}

// GroupNames returns the group names in catalog order.
func (c *Catalog) GroupNames() []string {
	out := make([]string, len(c.Groups))
	for i, g := range c.Groups {
		out[i] = string(g)
	}
	return out
}

// CycleNames returns the cycle names in rotation order.
func (c *Catalog) CycleNames() []string {
	out := make([]string, len(c.Rotation))
	for i, r := range c.Rotation {
		out[i] = string(r)
	}
	return out
}

// FirstCycle is the cycle a new profile starts in.
func (c *Catalog) FirstCycle() Cycle {
	return c.Rotation[0]
}

// ValidGroup reports whether g is one of the catalog's muscle groups.
func (c *Catalog) ValidGroup(g Group) bool {
	return slices.Contains(c.Groups, g)
}

// ValidCycle reports whether name is in the rotation.
func (c *Catalog) ValidCycle(name Cycle) bool {
	return slices.Contains(c.Rotation, name)
}

// CycleParams returns the parameters for the named cycle.
func (c *Catalog) CycleParams(name Cycle) (CycleParams, error) {
	p, ok := c.Params[name]
	if !ok || !c.ValidCycle(name) {
		return CycleParams{}, &InvalidCycleError{Name: string(name)}
	}
	return p, nil
}

// Next returns the cycle that follows name, wrapping after the last one.
func (c *Catalog) Next(name Cycle) (Cycle, error) {
	i := slices.Index(c.Rotation, name)
	if i < 0 {
		return "", &InvalidCycleError{Name: string(name)}
	}
	return c.Rotation[(i+1)%len(c.Rotation)], nil
}

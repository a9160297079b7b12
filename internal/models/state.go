package models

// TrainingState is the progress through the active cycle.
type TrainingState struct {
	CurrentCycle  Cycle   `json:"currentCycle"`
	TrainedGroups []Group `json:"trainedGroups"`
}

// Snapshot is the import/export document.
type Snapshot struct {
	Exercises     []Exercise `json:"exercises"`
	TrainedGroups []Group    `json:"trainedGroups"`
	CurrentCycle  Cycle      `json:"currentCycle"`
}

// Prescription is what to lift for one exercise in a cycle.
type Prescription struct {
	Exercise     Exercise `json:"exercise"`
	Cycle        Cycle    `json:"cycle"`
	TargetWeight int      `json:"target_weight"`
	Reps         RepRange `json:"reps"`
	Sets         int      `json:"sets"`
}

// GroupPlan is one muscle group's section of the training plan.
type GroupPlan struct {
	Group         Group          `json:"group"`
	Trained       bool           `json:"trained"`
	Prescriptions []Prescription `json:"prescriptions"`
}

// Plan is the training view for the current cycle.
type Plan struct {
	Cycle  Cycle       `json:"cycle"`
	Params CycleParams `json:"params"`
	Groups []GroupPlan `json:"groups"`
}

// TargetWeight is the computed working weight of one exercise.
type TargetWeight struct {
	ExerciseID string `json:"exercise_id"`
	Cycle      Cycle  `json:"cycle"`
	Weight     int    `json:"target_weight"`
}

package workflow

import (
	"errors"
	"fmt"
)

// Stage is one of the ordered conversation phases.
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StageScoping   Stage = "scoping"
	StageSpec      Stage = "spec"
	StageDone      Stage = "done"
)

var stageOrder = []Stage{StageDiscovery, StageScoping, StageSpec, StageDone}

// ErrInvalidTransition is returned when a stage change would move backward
// or skip a stage.
var ErrInvalidTransition = errors.New("invalid stage transition")

// AllStages returns the stages in pipeline order.
func AllStages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Index returns the position of s in the pipeline, or -1.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Terminal reports whether s is the final stage.
func (s Stage) Terminal() bool {
	return s == StageDone
}

// Next returns the stage after s.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[i+1], true
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}

// CanTransition reports whether moving from one stage to another is allowed:
// staying put, or advancing exactly one stage.
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}

// ParseStage converts a string into a Stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

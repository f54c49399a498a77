package domain

// StoryPhase is the hero's-journey position a chapter falls into. Derived
// from the chapter number and total length, never stored authoritatively.
type StoryPhase string

const (
	PhaseExposition StoryPhase = "EXPOSITION"
	PhaseRising     StoryPhase = "RISING_ACTION"
	PhaseTrials     StoryPhase = "TRIALS"
	PhaseClimax     StoryPhase = "CLIMAX"
	PhaseReturn     StoryPhase = "RETURN"
)

func (p StoryPhase) String() string { return string(p) }

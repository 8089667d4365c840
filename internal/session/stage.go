package session

import "fmt"

// Stage identifies how far a session has progressed through the pipeline.
type Stage string

const (
	StageDetected    Stage = "detected"
	StageMoved       Stage = "moved"
	StageTranscribed Stage = "transcribed"
	StageEnhanced    Stage = "enhanced"
	StageOrganized   Stage = "organized"
	StagePersisted   Stage = "persisted"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

var stageOrder = []Stage{
	StageDetected,
	StageMoved,
	StageTranscribed,
	StageEnhanced,
	StageOrganized,
	StagePersisted,
	StageDone,
}

// Next returns the stage that follows s in the normal progression. Terminal
// stages return themselves.
func (s Stage) Next() Stage {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return s
}

// IsTerminal reports whether no further processing happens for the stage.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

func (s Stage) String() string { return string(s) }

// ParseStage validates a stage name read from disk or the sink.
func ParseStage(raw string) (Stage, error) {
	switch Stage(raw) {
	case StageDetected, StageMoved, StageTranscribed, StageEnhanced,
		StageOrganized, StagePersisted, StageDone, StageFailed:
		return Stage(raw), nil
	}
	return "", fmt.Errorf("unknown stage %q", raw)
}

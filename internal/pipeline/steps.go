package pipeline

import (
	"strconv"
	"strings"

	"summify/internal/services"
)

// Step is one pipeline stage.
type Step int

const (
	StepExtract    Step = 1
	StepTranscribe Step = 2
	StepFix        Step = 3
	StepSummarize  Step = 4
)

func (s Step) String() string {
	switch s {
	case StepExtract:
		return "extract"
	case StepTranscribe:
		return "transcribe"
	case StepFix:
		return "fix"
	case StepSummarize:
		return "summarize"
	default:
		return "step" + strconv.Itoa(int(s))
	}
}

// StepSet is a validated, strictly ascending selection of steps.
type StepSet []Step

// AllSteps selects the whole pipeline.
var AllSteps = StepSet{StepExtract, StepTranscribe, StepFix, StepSummarize}

// ParseSteps validates a step string such as "1234" or "34". It must be
// non-empty, contain only the digits 1-4, and be strictly ascending.
func ParseSteps(value string) (StepSet, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, services.New(services.CodeInvalidSteps, "no steps selected")
	}
	set := make(StepSet, 0, len(value))
	for _, r := range value {
		if r < '1' || r > '4' {
			return nil, services.Newf(services.CodeInvalidSteps, "unknown step %q in %q", r, value)
		}
		step := Step(r - '0')
		if len(set) > 0 && step <= set[len(set)-1] {
			return nil, services.Newf(services.CodeInvalidSteps, "steps %q must be strictly ascending without repeats", value)
		}
		set = append(set, step)
	}
	return set, nil
}

// Contains reports whether step is selected.
func (s StepSet) Contains(step Step) bool {
	for _, candidate := range s {
		if candidate == step {
			return true
		}
	}
	return false
}

// String renders the set in its digit form.
func (s StepSet) String() string {
	var b strings.Builder
	for _, step := range s {
		b.WriteString(strconv.Itoa(int(step)))
	}
	return b.String()
}

// Names renders the set as step names.
func (s StepSet) Names() []string {
	names := make([]string, len(s))
	for i, step := range s {
		names[i] = step.String()
	}
	return names
}

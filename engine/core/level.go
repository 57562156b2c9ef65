package core

// Level is how much work a processor has completed. Levels only grow, except
// through an explicit Unload, Trim or Cancel.
type Level int

const (
	LevelUnloaded Level = iota
	LevelInfo
	LevelParsed
	LevelLoaded
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelParsed:
		return "parsed"
	case LevelLoaded:
		return "loaded"
	}
	return "unloaded"
}

type Action int

const (
	// ActionNone: no flag concerns asset processing.
	ActionNone Action = iota
	// ActionSatisfied: the current level already covers the request.
	ActionSatisfied
	ActionCancel
	ActionUnload
	ActionTrim
	// ActionWork: continue from the current level toward Target.
	ActionWork
	// ActionRewind: a weaker terminal level was reached before; restart toward Target.
	ActionRewind
)

func (a Action) String() string {
	return [...]string{"none", "satisfied", "cancel", "unload", "trim", "work", "rewind"}[a]
}

// Step is what a processor must do next.
type Step struct {
	Action Action
	Target Level
}

// Plan decides the next step for a processor sitting at level when asked for
// flags. It has no side effects so every processor shares the same ordering of
// cancel, unload, trim and work.
func Plan(level Level, flags PhaseFlags) Step {
	switch {
	case !flags.Relevant():
		return Step{Action: ActionNone, Target: level}
	case flags.Any(PhaseCancel):
		return Step{Action: ActionCancel, Target: LevelUnloaded}
	case flags.Any(PhaseUnload):
		if level == LevelUnloaded {
			return Step{Action: ActionSatisfied, Target: level}
		}
		return Step{Action: ActionUnload, Target: LevelUnloaded}
	case flags.Any(PhaseTrim):
		if level <= LevelInfo {
			return Step{Action: ActionSatisfied, Target: level}
		}
		return Step{Action: ActionTrim, Target: level}
	}

	target := flags.Requested()
	if level >= target {
		return Step{Action: ActionSatisfied, Target: level}
	}
	if level > LevelUnloaded {
		return Step{Action: ActionRewind, Target: target}
	}
	return Step{Action: ActionWork, Target: target}
}

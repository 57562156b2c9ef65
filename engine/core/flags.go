package core

import "strings"

// PhaseFlags is a set of processing intents. The processor decides which of
// them still require work given its current state.
type PhaseFlags uint32

const (
	PhaseInfo PhaseFlags = 1 << iota
	PhaseParse
	PhaseLoad
	PhaseUnload
	PhaseTrim
	PhaseCancel
	// PhaseUnformatted skips tag, resize, mipmap and compression when cooking textures.
	PhaseUnformatted
	PhaseFastCook
	PhaseNoDefaultMedia

	TargetPC
	TargetIPhone
	TargetIPad
)

const (
	TargetIOS     = TargetIPhone | TargetIPad
	TargetMask    = TargetPC | TargetIOS
	TargetDefault = TargetPC

	phaseMask = PhaseInfo | PhaseParse | PhaseLoad | PhaseUnload | PhaseTrim | PhaseCancel
)

// Has reports whether every bit of f is set.
func (p PhaseFlags) Has(f PhaseFlags) bool {
	return p&f == f
}

// Any reports whether at least one bit of f is set.
func (p PhaseFlags) Any(f PhaseFlags) bool {
	return p&f != 0
}

// Relevant reports whether the set asks a processor to do anything at all.
func (p PhaseFlags) Relevant() bool {
	return p&phaseMask != 0
}

func (p PhaseFlags) Without(f PhaseFlags) PhaseFlags {
	return p &^ f
}

// Requested returns the strongest level asked for by Info, Parse or Load.
func (p PhaseFlags) Requested() Level {
	switch {
	case p.Any(PhaseLoad):
		return LevelLoaded
	case p.Any(PhaseParse):
		return LevelParsed
	case p.Any(PhaseInfo):
		return LevelInfo
	}
	return LevelUnloaded
}

// Targets returns the target bits, or def when the caller did not name any.
func (p PhaseFlags) Targets(def PhaseFlags) PhaseFlags {
	if t := p & TargetMask; t != 0 {
		return t
	}
	return def & TargetMask
}

var flagNames = []struct {
	flag PhaseFlags
	name string
}{
	{PhaseInfo, "info"},
	{PhaseParse, "parse"},
	{PhaseLoad, "load"},
	{PhaseUnload, "unload"},
	{PhaseTrim, "trim"},
	{PhaseCancel, "cancel"},
	{PhaseUnformatted, "unformatted"},
	{PhaseFastCook, "fastcook"},
	{PhaseNoDefaultMedia, "nodefaultmedia"},
	{TargetPC, "pc"},
	{TargetIPhone, "iphone"},
	{TargetIPad, "ipad"},
}

func (p PhaseFlags) String() string {
	if p == 0 {
		return "none"
	}
	var names []string
	for _, f := range flagNames {
		if p.Any(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// ParsePhaseFlags is the inverse of String. Unknown names are ignored.
func ParsePhaseFlags(s string) PhaseFlags {
	var p PhaseFlags
	for _, part := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '|' || r == ',' }) {
		for _, f := range flagNames {
			if f.name == strings.TrimSpace(part) {
				p |= f.flag
			}
		}
	}
	return p
}

package types

import "strings"

// Signal is a discrete trading instruction received from the alerting side.
type Signal string

const (
	// SignalLongEntry opens (or adds to) a long position.
	SignalLongEntry Signal = "long entry"
	// SignalShortEntry opens (or adds to) a short position.
	SignalShortEntry Signal = "short entry"
	// SignalLongExit closes one long contract.
	SignalLongExit Signal = "long exit"
	// SignalShortExit closes one short contract.
	SignalShortExit Signal = "short exit"
	// SignalInvalid is any value that is not one of the above.
	SignalInvalid Signal = "invalid"
)

// ParseSignal normalizes a raw signal string. Matching is case-insensitive,
// ignores surrounding whitespace and treats '_' and '-' as spaces, so
// "LONG_ENTRY", "long-entry" and " Long Entry " are all SignalLongEntry.
// Anything else is SignalInvalid.
func ParseSignal(raw string) Signal {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	switch Signal(normalized) {
	case SignalLongEntry, SignalShortEntry, SignalLongExit, SignalShortExit:
		return Signal(normalized)
	default:
		return SignalInvalid
	}
}

// IsEntry reports whether the signal opens exposure.
func (s Signal) IsEntry() bool {
	return s == SignalLongEntry || s == SignalShortEntry
}

// IsExit reports whether the signal closes exposure.
func (s Signal) IsExit() bool {
	return s == SignalLongExit || s == SignalShortExit
}

// IsValid reports whether the signal is one of the four recognized values.
func (s Signal) IsValid() bool {
	return s.IsEntry() || s.IsExit()
}

package keyspace

import (
	"bytes"
	"fmt"
)

// Class is the classification of a key range.
type Class int

const (
	// ClassOrdinary is the regular tenant-addressable keyspace.
	ClassOrdinary Class = iota
	// ClassSystem is the reserved cluster-metadata keyspace under \xff.
	ClassSystem
	// ClassSpecial covers the enumerated administrative sub-ranges under \xff\xff.
	ClassSpecial
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassOrdinary:
		return "ordinary"
	case ClassSystem:
		return "system"
	case ClassSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// Keyspace boundaries. The system keyspace spans [SystemBegin, SpecialEnd);
// the special keyspace [SpecialBegin, SpecialEnd) is nested inside it.
var (
	SystemBegin  = []byte{0xff}
	SpecialBegin = []byte{0xff, 0xff}
	SpecialEnd   = []byte{0xff, 0xff, 0xff}
)

// Range is a half-open interval [Begin, End) of keys with a diagnostic label.
type Range struct {
	Label string
	Begin []byte
	End   []byte
}

// Overlaps reports whether [begin, end) intersects the range.
func (r Range) Overlaps(begin, end []byte) bool {
	return bytes.Compare(begin, r.End) < 0 && bytes.Compare(r.Begin, end) < 0
}

// Contains reports whether a single key falls inside the range.
func (r Range) Contains(key []byte) bool {
	return bytes.Compare(r.Begin, key) <= 0 && bytes.Compare(key, r.End) < 0
}

func special(label, path string, end byte) Range {
	begin := append(append([]byte{}, SpecialBegin...), path...)
	var e []byte
	switch end {
	case 0x00:
		e = append(append([]byte{}, begin...), 0x00)
	default:
		e = append(append([]byte{}, begin...), 0xff, 0xff)
	}
	return Range{Label: label, Begin: begin, End: e}
}

// SpecialRanges is the static deny table of administrative sub-ranges exposed
// through the special keyspace. Access to any of them is refused for
// token-authenticated sessions regardless of requested access modes.
var SpecialRanges = []Range{
	special("transaction description", "/description", 0x00),
	special("global knobs", "/globalKnobs", 0x00),
	special("process knobs", "/knobs0", 0x00),
	special("conflicting keys", "/transaction/conflicting_keys/", 0xff),
	special("read conflict range", "/transaction/read_conflict_range/", 0xff),
	special("write conflict range", "/transaction/write_conflict_range/", 0xff),
	special("data distribution stats", "/metrics/data_distribution_stats/", 0xff),
	special("kill storage", "/globals/killStorage", 0x00),
}

// SingleKeyEnd returns the end boundary of the one-key range containing key.
func SingleKeyEnd(key []byte) []byte {
	return append(append([]byte{}, key...), 0x00)
}

// Classify determines the class of the half-open range [begin, end).
// A range that touches any disallowed region is classified as that region as a
// whole; there is no partial or truncated service.
func Classify(begin, end []byte) Class {
	for _, r := range SpecialRanges {
		if r.Overlaps(begin, end) {
			return ClassSpecial
		}
	}
	// Anything reaching past the ordinary keyspace counts as system access,
	// including the nested special keyspace outside the enumerated ranges.
	sys := Range{Begin: SystemBegin, End: SpecialEnd}
	if sys.Overlaps(begin, end) {
		return ClassSystem
	}
	return ClassOrdinary
}

// DeniedError reports a range refused by the keyspace guard.
type DeniedError struct {
	Class Class
	Label string // matching special range label, if any
}

// Error returns the diagnostic message. It is internal detail only; callers
// surface it to clients as a uniform permission denial.
func (e *DeniedError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("keyspace: access to %s range (%s) denied", e.Class, e.Label)
	}
	return fmt.Sprintf("keyspace: access to %s keyspace denied", e.Class)
}

// Check applies the guard for a token-authenticated session to [begin, end).
// Token-based authorization never grants system or special privilege, so the
// requested access modes (system keys, relaxed special keyspace) are accepted
// as input but cannot make a privileged range admissible.
func Check(begin, end []byte) error {
	for _, r := range SpecialRanges {
		if r.Overlaps(begin, end) {
			return &DeniedError{Class: ClassSpecial, Label: r.Label}
		}
	}
	if (Range{Begin: SystemBegin, End: SpecialEnd}).Overlaps(begin, end) {
		return &DeniedError{Class: ClassSystem}
	}
	return nil
}

// CheckKey applies Check to the single-key range containing key.
func CheckKey(key []byte) error {
	return Check(key, SingleKeyEnd(key))
}

package dataset

import (
	"fmt"
	"strings"
)

// ParseModeKind selects how a raw date-like column is turned into month keys
type ParseModeKind string

const (
	ModeAutoInfer    ParseModeKind = "auto"
	ModeDayFirst     ParseModeKind = "dayfirst"
	ModeMonthFirst   ParseModeKind = "monthfirst"
	ModeISOStrict    ParseModeKind = "iso"
	ModeSliceFirst7  ParseModeKind = "slice7"
	ModeRegexExtract ParseModeKind = "regex"
)

// ParseMode is applied uniformly to a whole date column. Pattern is only used by ModeRegexExtract.
type ParseMode struct {
	Kind    ParseModeKind `json:"kind"`
	Pattern string        `json:"pattern,omitempty"`
}

// ParseParseMode maps a user-facing mode name (and optional regex) to a ParseMode.
// An empty name selects ModeAutoInfer.
func ParseParseMode(name, pattern string) (ParseMode, error) {
	switch kind := ParseModeKind(strings.ToLower(strings.TrimSpace(name))); kind {
	case "":
		return ParseMode{Kind: ModeAutoInfer}, nil
	case ModeAutoInfer, ModeDayFirst, ModeMonthFirst, ModeISOStrict, ModeSliceFirst7:
		return ParseMode{Kind: kind}, nil
	case ModeRegexExtract:
		if pattern == "" {
			return ParseMode{}, fmt.Errorf("parse mode %q requires a pattern", kind)
		}
		return ParseMode{Kind: kind, Pattern: pattern}, nil
	default:
		return ParseMode{}, fmt.Errorf("unknown parse mode %q", name)
	}
}

func (m ParseMode) String() string {
	if m.Kind == ModeRegexExtract {
		return fmt.Sprintf("%s(%s)", m.Kind, m.Pattern)
	}
	if m.Kind == "" {
		return string(ModeAutoInfer)
	}
	return string(m.Kind)
}

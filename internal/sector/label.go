package sector

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Label is the dominant view type of a sector.
type Label string

// View labels.
const (
	Green Label = "GREEN"
	Water Label = "WATER"
	City  Label = "CITY"
	Open  Label = "OPEN"
)

// DefaultTieBreak ranks labels whose scores are exactly equal and maximal.
var DefaultTieBreak = []Label{Water, Green, City, Open}

// ParseLabel parses a label name, ignoring case.
func ParseLabel(s string) (Label, error) {
	switch l := Label(strings.ToUpper(strings.TrimSpace(s))); l {
	case Green, Water, City, Open:
		return l, nil
	}
	return "", eris.Errorf("sector: unknown label %q", s)
}

// ParseTieBreak parses a priority list. It must name every label exactly
// once. An empty list selects DefaultTieBreak.
func ParseTieBreak(names []string) ([]Label, error) {
	if len(names) == 0 {
		return append([]Label(nil), DefaultTieBreak...), nil
	}
	out := make([]Label, 0, len(names))
	seen := make(map[Label]bool, len(names))
	for _, n := range names {
		l, err := ParseLabel(n)
		if err != nil {
			return nil, err
		}
		if seen[l] {
			return nil, eris.Errorf("sector: label %s ranked twice", l)
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) != len(DefaultTieBreak) {
		return nil, eris.Errorf("sector: tie-break ranks %d of %d labels", len(out), len(DefaultTieBreak))
	}
	return out, nil
}

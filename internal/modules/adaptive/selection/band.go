package selection

import (
	"fmt"
	"strings"
)

// Band is an item difficulty band. Bands are ordered easy < medium < hard.
type Band string

const (
	BandEasy   Band = "easy"
	BandMedium Band = "medium"
	BandHard   Band = "hard"
)

var bandOrder = []Band{BandEasy, BandMedium, BandHard}

const (
	easyAbilityCeiling   = 0.33
	mediumAbilityCeiling = 0.66
)

func ParseBand(raw string) (Band, error) {
	switch b := Band(strings.ToLower(strings.TrimSpace(raw))); b {
	case BandEasy, BandMedium, BandHard:
		return b, nil
	default:
		return "", fmt.Errorf("selection: unknown difficulty band %q", raw)
	}
}

func (b Band) Index() int {
	for i, v := range bandOrder {
		if v == b {
			return i
		}
	}
	return -1
}

func (b Band) Valid() bool { return b.Index() >= 0 }

func (b Band) String() string { return string(b) }

// BandForAbility is the exploit choice before range clamping.
func BandForAbility(ability float64) Band {
	switch {
	case ability < easyAbilityCeiling:
		return BandEasy
	case ability < mediumAbilityCeiling:
		return BandMedium
	default:
		return BandHard
	}
}

// clampBand moves b into [lo,hi] of the ordered band list.
func clampBand(b Band, lo, hi Band) Band {
	i, l, h := b.Index(), lo.Index(), hi.Index()
	if i < l {
		return lo
	}
	if i > h {
		return hi
	}
	return b
}

func bandsBetween(lo, hi Band) []Band {
	return bandOrder[lo.Index() : hi.Index()+1]
}

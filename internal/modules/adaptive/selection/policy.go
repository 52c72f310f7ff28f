// Package selection ranks candidate items for a learner: an epsilon-greedy target band
// bounded by the course's difficulty range, an anti-repeat window, and a stable ranking.
package selection

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

type Mode string

const (
	ModeExploit Mode = "exploit"
	ModeExplore Mode = "explore"
)

type Config struct {
	Epsilon            float64 `json:"epsilon" yaml:"epsilon" validate:"gte=0,lte=1"`
	MinDifficulty      Band    `json:"min_difficulty" yaml:"min_difficulty" validate:"required,oneof=easy medium hard"`
	MaxDifficulty      Band    `json:"max_difficulty" yaml:"max_difficulty" validate:"required,oneof=easy medium hard"`
	AvoidRepeatMinutes int     `json:"avoid_repeat_minutes" yaml:"avoid_repeat_minutes" validate:"gte=0"`
}

var (
	ErrInvalidConfig = errors.New("selection: invalid policy config")
	validate         = validator.New()
)

func DefaultConfig() Config {
	return Config{Epsilon: 0.1, MinDifficulty: BandEasy, MaxDifficulty: BandHard, AvoidRepeatMinutes: 30}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MinDifficulty.Index() > c.MaxDifficulty.Index() {
		return fmt.Errorf("%w: min_difficulty %s is above max_difficulty %s", ErrInvalidConfig, c.MinDifficulty, c.MaxDifficulty)
	}
	return nil
}

// RepeatWindow is the anti-repeat window length.
func (c Config) RepeatWindow() time.Duration {
	return time.Duration(c.AvoidRepeatMinutes) * time.Minute
}

type Candidate struct {
	ItemID     string     `json:"item_id"`
	Difficulty Band       `json:"difficulty"`
	Type       string     `json:"type"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

func (c Candidate) lastSeenMillis() int64 {
	if c.LastSeenAt == nil {
		return 0
	}
	return c.LastSeenAt.UnixMilli()
}

type Decision struct {
	Band Band `json:"band"`
	Mode Mode `json:"mode"`
}

type Result struct {
	Target   Band        `json:"target"`
	Mode     Mode        `json:"mode"`
	Items    []Candidate `json:"items"`
	Filtered int         `json:"filtered"`
}

type Policy struct {
	Config Config
	Rand   Rand
	Now    func() time.Time
}

func NewPolicy(cfg Config, r Rand) *Policy {
	return &Policy{Config: cfg, Rand: r, Now: time.Now}
}

// TargetBand picks the band to serve. With probability Epsilon the exploit band is
// replaced by a uniform draw from [MinDifficulty, MaxDifficulty].
func (p *Policy) TargetBand(ability float64) Decision {
	lo, hi := p.bounds()
	exploit := clampBand(BandForAbility(ability), lo, hi)
	if p.Rand == nil || p.Config.Epsilon <= 0 {
		return Decision{Band: exploit, Mode: ModeExploit}
	}
	if p.Rand.Float64() < p.Config.Epsilon {
		allowed := bandsBetween(lo, hi)
		return Decision{Band: allowed[p.Rand.IntN(len(allowed))], Mode: ModeExplore}
	}
	return Decision{Band: exploit, Mode: ModeExploit}
}

func (p *Policy) bounds() (Band, Band) {
	lo, hi := p.Config.MinDifficulty, p.Config.MaxDifficulty
	if !lo.Valid() {
		lo = BandEasy
	}
	if !hi.Valid() {
		hi = BandHard
	}
	if lo.Index() > hi.Index() {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Select filters and ranks candidates. An empty Items slice is a normal result.
func (p *Policy) Select(ability float64, candidates []Candidate) Result {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	d := p.TargetBand(ability)
	kept := FilterRecent(candidates, now, p.Config.RepeatWindow())
	return Result{
		Target:   d.Band,
		Mode:     d.Mode,
		Items:    Rank(d.Band, kept),
		Filtered: len(candidates) - len(kept),
	}
}

// FilterRecent drops candidates seen at or after now-window.
func FilterRecent(candidates []Candidate, now time.Time, window time.Duration) []Candidate {
	cutoff := now.UnixMilli() - window.Milliseconds()
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.LastSeenAt != nil && c.LastSeenAt.UnixMilli() >= cutoff {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Rank orders target-band items first, then by ascending last-seen time (never seen first).
// Ties keep their input order.
func Rank(target Band, candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := out[i].Difficulty == target, out[j].Difficulty == target
		if mi != mj {
			return mi
		}
		return out[i].lastSeenMillis() < out[j].lastSeenMillis()
	})
	return out
}

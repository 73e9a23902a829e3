package signal

import (
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/indicator"
)

// Grade is the entry-quality bucket
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeNone  Grade = "NONE"
)

var gradeRank = map[Grade]int{
	GradeNone:  0,
	GradeC:     1,
	GradeB:     2,
	GradeA:     3,
	GradeAPlus: 4,
}

// Valid reports whether g is a known grade
func (g Grade) Valid() bool {
	_, ok := gradeRank[g]
	return ok
}

// AtLeast reports whether g meets the floor
func (g Grade) AtLeast(floor Grade) bool {
	return gradeRank[g] >= gradeRank[floor]
}

// GradeFor buckets a checklist score
func GradeFor(score int) Grade {
	switch {
	case score >= 8:
		return GradeAPlus
	case score >= 6:
		return GradeA
	case score >= 4:
		return GradeB
	case score >= 2:
		return GradeC
	default:
		return GradeNone
	}
}

// GradeEntry scores how well the latest bar supports entering in the bias direction.
// It is independent of the directional score.
func GradeEntry(s *Snapshot, bias core.Bias, p *ScoringProfile) (int, Grade) {
	if bias != core.BiasLong && bias != core.BiasShort {
		return 0, GradeNone
	}
	long := bias == core.BiasLong
	want := core.Bullish
	if !long {
		want = core.Bearish
	}

	score := 0
	if s.Pattern != nil && s.Pattern.Direction == want {
		score += s.Pattern.Strength
	}
	if s.Volume.RelativeVolume >= p.VolumeSpikeRatio {
		score += 2
	}
	if (long && s.bullStack()) || (!long && s.bearStack()) {
		score += 2
	}
	if (long && s.Structure.Trend == indicator.Uptrend) || (!long && s.Structure.Trend == indicator.Downtrend) {
		score += 2
	}
	if s.Inputs.ReferenceBias == bias {
		score++
	}
	if (long && s.RSI < 65) || (!long && s.RSI > 35) {
		score++
	}
	if (long && s.Divergence == indicator.DivergenceBullish) || (!long && s.Divergence == indicator.DivergenceBearish) {
		score += 2
	}

	return score, GradeFor(score)
}

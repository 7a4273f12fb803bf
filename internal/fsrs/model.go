package fsrs

import (
	"math"

	"github.com/kioku-app/kioku/internal/domain"
)

// model holds the weight vector plus constants precomputed from it.
type model struct {
	w      Weights
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

func newModel(w Weights) model {
	decay := -w[20]
	return model{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// retrievability is the predicted recall probability after elapsedDays:
// R(t, S) = (1 + factor * t / S) ^ decay.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// initStability is S0(G) for a card's first scheduling pass.
func (m *model) initStability(r domain.Rating) float64 {
	return clampStability(m.w[r-1])
}

// initDifficulty is D0(G) = w[4] - e^(w[5]*(G-1)) + 1, clamped to [1, 10]
// unless the unclamped value is needed as a mean-reversion target.
func (m *model) initDifficulty(r domain.Rating, clamp bool) float64 {
	d := m.w[4] - math.Exp(m.w[5]*float64(r-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// nextInterval converts stability into the number of days at which the
// predicted recall probability equals the desired retention:
// I(r, S) = round((S / factor) * (r^(1/decay) - 1)), clamped to [1, maxDays].
func (m *model) nextInterval(stability, desiredRetention float64, maxDays int) int {
	ivl := stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxDays {
		days = maxDays
	}
	return days
}

// shortTermStability handles same-day reviews, where no meaningful decay
// has happened yet: SInc = e^(w[17]*(G-3+w[18])) * S^(-w[19]),
// floored at 1.0 for Good and Easy.
func (m *model) shortTermStability(stability float64, r domain.Rating) float64 {
	inc := math.Exp(m.w[17]*(float64(r)-3+m.w[18])) * math.Pow(stability, -m.w[19])
	if r == domain.Good || r == domain.Easy {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

// nextDifficulty applies linear damping then mean reversion toward D0(Easy):
// delta = -w[6]*(G-3); D' = D + (10-D)*delta/9; D'' = w[7]*D0(Easy) + (1-w[7])*D'.
func (m *model) nextDifficulty(difficulty float64, r domain.Rating) float64 {
	delta := -m.w[6] * (float64(r) - 3)
	damped := difficulty + (10-difficulty)*delta/9
	target := m.initDifficulty(domain.Easy, false)
	return clampDifficulty(m.w[7]*target + (1-m.w[7])*damped)
}

func (m *model) nextStability(difficulty, stability, retrievability float64, r domain.Rating) float64 {
	if r == domain.Again {
		return m.forgetStability(difficulty, stability, retrievability)
	}
	return m.recallStability(difficulty, stability, retrievability, r)
}

// recallStability is the stability after a successful recall:
// S' = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus).
// The increase shrinks as difficulty grows and is largest for Easy.
func (m *model) recallStability(d, s, r float64, rating domain.Rating) float64 {
	hardPenalty := 1.0
	if rating == domain.Hard {
		hardPenalty = m.w[15]
	}
	easyBonus := 1.0
	if rating == domain.Easy {
		easyBonus = m.w[16]
	}
	return s * (1 + math.Exp(m.w[8])*
		(11-d)*
		math.Pow(s, -m.w[9])*
		(math.Exp((1-r)*m.w[10])-1)*
		hardPenalty*easyBonus)
}

// forgetStability is the post-lapse stability, the lesser of the long-term
// formula and the short-term ceiling:
// long = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^((1-R)*w[14])
// short = S / e^(w[17]*w[18]).
func (m *model) forgetStability(d, s, r float64) float64 {
	long := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-r)*m.w[14])
	short := s / math.Exp(m.w[17]*m.w[18])
	return math.Min(long, short)
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}

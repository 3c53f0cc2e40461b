// Package pricing implements the pure, I/O-free probability and
// expected-value math the engine trades on: de-vigging raw bookmaker odds,
// Kelly sizing, EV at buy/settlement/mark, fill-probability estimation, and
// the maker-vs-taker routing decision.
package pricing

import "math"

const epsilon = 1e-6

func clampProb(p float64) float64 {
	if p < epsilon {
		return epsilon
	}
	if p > 1-epsilon {
		return 1 - epsilon
	}
	return p
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// DeVigLogit removes the bookmaker's overround from two raw implied
// probabilities by shifting both logits by the same λ until the resulting
// probabilities sum to 1, solved by bisection over λ ∈ [-50, 50]. Falls
// back to proportional normalization on numerical failure to converge.
func DeVigLogit(p1, p2 float64) (q1, q2 float64) {
	p1 = clampProb(p1)
	p2 = clampProb(p2)

	l1, l2 := logit(p1), logit(p2)

	f := func(lambda float64) float64 {
		return sigmoid(l1-lambda) + sigmoid(l2-lambda) - 1
	}

	lo, hi := -50.0, 50.0
	fLo, fHi := f(lo), f(hi)
	if fLo*fHi > 0 {
		// Bisection cannot converge (same sign at both ends); fall back.
		return devigProportional(p1, p2)
	}

	var mid float64
	for i := 0; i < 100; i++ {
		mid = (lo + hi) / 2
		fMid := f(mid)
		if math.Abs(fMid) < 1e-9 {
			break
		}
		if (fMid > 0) == (fLo > 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}

	q1 = sigmoid(l1 - mid)
	q2 = sigmoid(l2 - mid)

	sum := q1 + q2
	if math.IsNaN(sum) || math.Abs(sum-1) > 1e-6 {
		return devigProportional(p1, p2)
	}
	return q1, q2
}

func devigProportional(p1, p2 float64) (float64, float64) {
	s := p1 + p2
	if s == 0 {
		return 0.5, 0.5
	}
	return p1 / s, p2 / s
}

// DeVigShin removes the overround using the two-way Shin (1992) model,
// solved by Newton-style fixed-point iteration on the insider-trading
// parameter z rather than closed-form bisection. This is this engine's
// default de-vig method, used in preference to the logit-shift method
// above.
func DeVigShin(decHome, decAway float64, tol float64, maxIter int) (qHome, qAway float64) {
	if tol <= 0 {
		tol = 1e-9
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	ph := 1.0 / decHome
	pa := 1.0 / decAway
	s := ph + pa
	qh, qa := ph/s, pa/s
	z := 0.0

	fairQ := func(q, zVal float64) float64 {
		return (math.Sqrt(zVal*zVal+4*(1-zVal)*q) - zVal) / (2*(1-zVal) + 1e-12)
	}

	var fh, fa float64
	for i := 0; i < maxIter; i++ {
		fh, fa = fairQ(qh, z), fairQ(qa, z)
		fVal := (fh + fa) - 1.0
		if math.Abs(fVal) < tol {
			break
		}

		dz := 1e-5
		fPrime := (fairQ(qh, z+dz) + fairQ(qa, z+dz)) - 1.0
		var dF float64
		if math.Abs(fPrime-fVal) > 1e-15 {
			dF = (fPrime - fVal) / dz
		}
		if math.Abs(dF) < 1e-12 {
			break
		}
		z = math.Max(0.0, math.Min(0.999999, z-fVal/dF))
	}

	return fh, fa
}

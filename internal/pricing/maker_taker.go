package pricing

// RouteDecision is the outcome of ChooseMakerVsTaker: which order type to
// use and the EV per contract it implies, after any fill-probability
// discount has been applied.
type RouteDecision struct {
	UseMaker   bool
	MakerEV    float64
	TakerEV    float64
	FillProbMk float64
}

// ChooseMakerVsTaker decides between resting a maker order at bestBid+tick
// and crossing the spread as a taker at bestAsk, weighing each route's EV
// by its fill probability (maker fills are never guaranteed; taker fills
// always are).
//
// A large order (qty > 50) resting at a thin fill probability (< 0.40) has
// its maker EV discounted by a further 0.8x: a big maker order that sits
// unfilled both forgoes the edge and signals size into the book, so ties
// are resolved more conservatively at quantity.
func ChooseMakerVsTaker(trueProb, makerPrice, takerPrice float64, fillProbMaker float64, qty int) RouteDecision {
	makerEV := EVAtBuy(trueProb, makerPrice, true) * fillProbMaker
	takerEV := EVAtBuy(trueProb, takerPrice, false)

	if qty > 50 && fillProbMaker < 0.40 {
		makerEV *= 0.8
	}

	useMaker := decideMakerVsTaker(makerEV, takerEV, fillProbMaker)

	return RouteDecision{
		UseMaker:   useMaker,
		MakerEV:    makerEV,
		TakerEV:    takerEV,
		FillProbMk: fillProbMaker,
	}
}

// decideMakerVsTaker applies the tie-break bands: when the two routes'
// EVs are close, fill probability breaks the tie rather than noise in the
// EV estimate: a near-certain maker fill (>=0.60) is preferred only when it
// also holds at least 90% of the taker's EV, and a near-impossible one
// (<0.20) forces the taker route regardless of the EV comparison.
func decideMakerVsTaker(makerEV, takerEV, fillProbMaker float64) bool {
	const tieBand = 0.002

	if fillProbMaker < 0.20 {
		return false
	}

	diff := makerEV - takerEV
	if diff > tieBand {
		return true
	}
	if diff < -tieBand {
		return false
	}

	if fillProbMaker >= 0.60 && makerEV >= 0.9*takerEV {
		return true
	}
	return false
}

package simulate

import "math"

// LogitShare returns the logit share of a product priced at price when the
// rival inside goods are priced at rivals, with xi = 0.
func LogitShare(beta, price float64, rivals ...float64) float64 {
	own := math.Exp(beta * price)
	denom := 1 + own
	for _, r := range rivals {
		denom += math.Exp(beta * r)
	}
	return own / denom
}

// TrueOwnElasticity is beta*p*(1-2*share), where share is the product's share in
// the combined two-block market (half of its share in its own logit block).
func TrueOwnElasticity(beta, price, share float64) float64 {
	return beta * price * (1 - 2*share)
}

// TrueOwnElasticityCurve evaluates TrueOwnElasticity along a price grid for a
// product whose in-block rival is held at rivalPrice. The combined share is half
// the block share.
func TrueOwnElasticityCurve(beta float64, grid []float64, rivalPrice float64) []float64 {
	out := make([]float64, len(grid))
	for g, p := range grid {
		share := LogitShare(beta, p, rivalPrice) / 2
		out[g] = TrueOwnElasticity(beta, p, share)
	}
	return out
}

package effects

import "context"

// NewHeuristicScorer returns the built-in scorer used when no external
// scoring service is configured.  It is a coarse rule set over the payment
// features: large amounts, one-night stays and hard-to-reverse methods all
// raise the score.  Scores stay within 0-100.
func NewHeuristicScorer() Scorer {
	return ScorerFunc(func(ctx context.Context, f Features) (uint8, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		score := 10
		switch {
		case f.AmountCents >= 500_000:
			score += 50
		case f.AmountCents >= 100_000:
			score += 25
		}
		if f.Nights <= 1 {
			score += 10
		}
		switch f.Method {
		case "crypto", "prepaid_card":
			score += 30
		case "wire_transfer":
			score += 15
		}
		if score > 100 {
			score = 100
		}
		return uint8(score), nil
	})
}

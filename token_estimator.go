package imagestudio

import (
	"math"
	"unicode"
)

// TokenEstimator estimates prompt tokens charged against a provider's rate limiter.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// SimpleTokenEstimator counts Han, Hiragana, Katakana and Hangul runes as one token each
// and everything else at four runes per token, then applies SafetyMargin.
type SimpleTokenEstimator struct {
	SafetyMargin float64
}

func NewSimpleTokenEstimator() *SimpleTokenEstimator {
	return &SimpleTokenEstimator{
		SafetyMargin: 1.2,
	}
}

func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	var ideographs, other int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			ideographs++
		} else {
			other++
		}
	}

	estimate := (float64(ideographs) + float64(other)/4.0) * e.SafetyMargin
	return int(math.Ceil(estimate)) + 3
}

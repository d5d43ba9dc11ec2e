package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity     float64 // time decay exponent
	WeightLike  float64
	WeightReply float64
	WeightView  float64 // views are orders of magnitude more frequent
	ScaleFactor float64
}

var DefaultRankConfig = RankConfig{
	Gravity:     1.5,
	WeightLike:  1.0,
	WeightReply: 2.0,
	WeightView:  0.05,
	ScaleFactor: 100.0, // lands fresh, active threads roughly in 0-100
}

// CalculateScore is the hot score of a discussion created at t, as seen at now.
func CalculateScore(t, now time.Time, likes, replies, views int) float64 {
	hours := now.Sub(t).Hours()
	if hours < 0 {
		hours = 0
	}

	weighted := float64(likes)*DefaultRankConfig.WeightLike +
		float64(replies)*DefaultRankConfig.WeightReply +
		float64(views)*DefaultRankConfig.WeightView
	if weighted < 0 {
		weighted = 0
	}

	// log10(sum+1) keeps a zero-engagement thread at 0
	numerator := math.Log10(weighted+1) * DefaultRankConfig.ScaleFactor
	decay := math.Pow(hours+2, DefaultRankConfig.Gravity)

	return numerator / decay
}

package noise

// Scoring tuning. A closed session earns 0, 3, or 5 points on each of three
// sub-components; the sum is clamped to [scoreMin, scoreMax].
const (
	quietRatioExcellent = 0.9
	quietRatioGood      = 0.7

	avgDecibelExcellent = 40.0
	avgDecibelGood      = 50.0

	abruptCountGood = 2

	subScoreExcellent = 5
	subScoreGood      = 3

	scoreMin = -15
	scoreMax = 15
)

// SessionScore computes the point delta a closed session contributes to the
// user's manner score.
func SessionScore(avgDecibel, quietRatio float64, abruptCount int) int {
	score := 0

	switch {
	case quietRatio >= quietRatioExcellent:
		score += subScoreExcellent
	case quietRatio >= quietRatioGood:
		score += subScoreGood
	}

	switch {
	case avgDecibel <= avgDecibelExcellent:
		score += subScoreExcellent
	case avgDecibel <= avgDecibelGood:
		score += subScoreGood
	}

	switch {
	case abruptCount == 0:
		score += subScoreExcellent
	case abruptCount <= abruptCountGood:
		score += subScoreGood
	}

	if score < scoreMin {
		return scoreMin
	}
	if score > scoreMax {
		return scoreMax
	}
	return score
}

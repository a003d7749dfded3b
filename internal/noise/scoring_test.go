package noise

import "testing"

func TestSessionScorePerfect(t *testing.T) {
	// Quiet ratio 0.95, average 35dB, no abrupt noises: full marks.
	if got := SessionScore(35, 0.95, 0); got != 15 {
		t.Errorf("Expected 15, got %d", got)
	}
}

func TestSessionScoreWorst(t *testing.T) {
	if got := SessionScore(80, 0.1, 10); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

func TestSessionScoreQuietRatioBoundary(t *testing.T) {
	base := SessionScore(80, 0.9, 10)
	if base != 5 {
		t.Errorf("Expected ratio 0.9 to score 5, got %d", base)
	}
	below := SessionScore(80, 0.89999, 10)
	if below != 3 {
		t.Errorf("Expected ratio 0.89999 to score 3, got %d", below)
	}
}

func TestSessionScoreDecibelBoundary(t *testing.T) {
	if got := SessionScore(40, 0.1, 10); got != 5 {
		t.Errorf("Expected 40dB to score 5, got %d", got)
	}
	if got := SessionScore(50, 0.1, 10); got != 3 {
		t.Errorf("Expected 50dB to score 3, got %d", got)
	}
	if got := SessionScore(50.001, 0.1, 10); got != 0 {
		t.Errorf("Expected 50.001dB to score 0, got %d", got)
	}
}

func TestSessionScoreAbruptBoundary(t *testing.T) {
	if got := SessionScore(80, 0.1, 0); got != 5 {
		t.Errorf("Expected 0 abrupt to score 5, got %d", got)
	}
	if got := SessionScore(80, 0.1, 2); got != 3 {
		t.Errorf("Expected 2 abrupt to score 3, got %d", got)
	}
	if got := SessionScore(80, 0.1, 3); got != 0 {
		t.Errorf("Expected 3 abrupt to score 0, got %d", got)
	}
}

func TestSessionScoreRangeAndMonotonic(t *testing.T) {
	ratios := []float64{0, 0.5, 0.7, 0.85, 0.9, 1.0}
	decibels := []float64{30, 40, 45, 50, 60, 90}
	counts := []int{0, 1, 2, 3, 10}

	for _, r := range ratios {
		for _, d := range decibels {
			for _, c := range counts {
				score := SessionScore(d, r, c)
				if score < scoreMin || score > scoreMax {
					t.Fatalf("Score %d out of range for (%v, %v, %d)", score, d, r, c)
				}
			}
		}
	}

	// Non-decreasing in quiet ratio.
	for i := 1; i < len(ratios); i++ {
		if SessionScore(60, ratios[i], 1) < SessionScore(60, ratios[i-1], 1) {
			t.Errorf("Score decreased as quiet ratio rose to %v", ratios[i])
		}
	}
	// Non-increasing in average decibel.
	for i := 1; i < len(decibels); i++ {
		if SessionScore(decibels[i], 0.5, 1) > SessionScore(decibels[i-1], 0.5, 1) {
			t.Errorf("Score increased as decibel rose to %v", decibels[i])
		}
	}
	// Non-increasing in abrupt count.
	for i := 1; i < len(counts); i++ {
		if SessionScore(60, 0.5, counts[i]) > SessionScore(60, 0.5, counts[i-1]) {
			t.Errorf("Score increased as abrupt count rose to %d", counts[i])
		}
	}
}

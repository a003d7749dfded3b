package noise

import "github.com/hushlab/hushd/internal/storage"

// Manner points live on a fixed 0–300 scale. SILENT starts at 240 (80%),
// GOOD at 160 (about 53%), everything below is WARNING.
const (
	PointsMin = 0
	PointsMax = 300

	gradeSilentCut = 240
	gradeGoodCut   = 160
)

// ClampPoints bounds a points value to the manner scale.
func ClampPoints(points int) int {
	if points < PointsMin {
		return PointsMin
	}
	if points > PointsMax {
		return PointsMax
	}
	return points
}

// GradeFor maps a points value to its grade tier.
func GradeFor(points int) storage.Grade {
	switch {
	case points >= gradeSilentCut:
		return storage.GradeSilent
	case points >= gradeGoodCut:
		return storage.GradeGood
	default:
		return storage.GradeWarning
	}
}

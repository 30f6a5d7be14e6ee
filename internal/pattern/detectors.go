package pattern

import (
	"math"

	"github.com/bnema/afkguard/internal/domain"
)

// Thresholds tune the geometric detectors. Distances are in world units and
// angles in radians; the horizontal plane is X/Z.
type Thresholds struct {
	MinSamples int

	ConfinedExtent float64

	CircleRadius   float64
	CircleMinDelta float64
	CircleMaxDelta float64
	CircleRatio    float64

	RepetitionSimilarity float64
	RepetitionScale      float64

	PendulumStep  float64
	PendulumRatio float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSamples:           20,
		ConfinedExtent:       5,
		CircleRadius:         3,
		CircleMinDelta:       0.1,
		CircleMaxDelta:       math.Pi / 2,
		CircleRatio:          0.6,
		RepetitionSimilarity: 0.8,
		RepetitionScale:      5,
		PendulumStep:         0.5,
		PendulumRatio:        0.3,
	}
}

// Detection is one detector's verdict. Score is the detector's own measure
// in [0,1] and is reported even when Detected is false.
type Detection struct {
	Pattern  domain.PatternType
	Detected bool
	Score    float64
}

type detector func([]domain.Sample, Thresholds) Detection

var detectors = []detector{DetectConfined, DetectCircular, DetectRepetitive, DetectPendulum}

// Detect runs every detector over samples.
func Detect(samples []domain.Sample, th Thresholds) []Detection {
	out := make([]Detection, 0, len(detectors))
	for _, d := range detectors {
		out = append(out, d(samples, th))
	}
	return out
}

// DetectConfined flags a trail whose horizontal bounding box fits inside the
// confined extent on both axes.
func DetectConfined(samples []domain.Sample, th Thresholds) Detection {
	result := Detection{Pattern: domain.PatternConfined}
	if !enough(samples, th) {
		return result
	}

	minX, maxX := samples[0].X, samples[0].X
	minZ, maxZ := samples[0].Z, samples[0].Z
	for _, s := range samples[1:] {
		minX, maxX = math.Min(minX, s.X), math.Max(maxX, s.X)
		minZ, maxZ = math.Min(minZ, s.Z), math.Max(maxZ, s.Z)
	}

	width, depth := maxX-minX, maxZ-minZ
	result.Detected = width <= th.ConfinedExtent && depth <= th.ConfinedExtent
	if th.ConfinedExtent > 0 {
		result.Score = clamp01(1 - math.Max(width, depth)/(2*th.ConfinedExtent))
	}
	return result
}

// DetectCircular flags a trail that stays within the circle radius of its
// centroid while rotating steadily around it.
func DetectCircular(samples []domain.Sample, th Thresholds) Detection {
	result := Detection{Pattern: domain.PatternCircular}
	if !enough(samples, th) {
		return result
	}

	var cx, cz float64
	for _, s := range samples {
		cx += s.X
		cz += s.Z
	}
	cx /= float64(len(samples))
	cz /= float64(len(samples))

	angles := make([]float64, len(samples))
	for i, s := range samples {
		if math.Hypot(s.X-cx, s.Z-cz) > th.CircleRadius {
			return result
		}
		angles[i] = math.Atan2(s.Z-cz, s.X-cx)
	}

	steady := 0
	for i := 1; i < len(angles); i++ {
		delta := math.Abs(normalizeAngle(angles[i] - angles[i-1]))
		if delta > th.CircleMinDelta && delta < th.CircleMaxDelta {
			steady++
		}
	}

	result.Score = float64(steady) / float64(len(angles)-1)
	result.Detected = result.Score >= th.CircleRatio
	return result
}

// DetectRepetitive splits the trail into three segments and flags it when
// any two segments retrace each other point by point.
func DetectRepetitive(samples []domain.Sample, th Thresholds) Detection {
	result := Detection{Pattern: domain.PatternRepetitive}
	if !enough(samples, th) {
		return result
	}

	size := len(samples) / 3
	if size == 0 {
		return result
	}
	a := samples[:size]
	b := samples[size : 2*size]
	c := samples[2*size : 3*size]

	best := math.Max(similarity(a, b, th.RepetitionScale), math.Max(similarity(b, c, th.RepetitionScale), similarity(a, c, th.RepetitionScale)))
	result.Score = best
	result.Detected = best > th.RepetitionSimilarity
	return result
}

// DetectPendulum flags a trail where enough consecutive triples step out and
// come straight back.
func DetectPendulum(samples []domain.Sample, th Thresholds) Detection {
	result := Detection{Pattern: domain.PatternPendulum}
	if !enough(samples, th) || len(samples) < 3 {
		return result
	}

	triples := len(samples) - 2
	swings := 0
	for i := 0; i < triples; i++ {
		p1, p2, p3 := samples[i], samples[i+1], samples[i+2]
		if p1.DistanceTo(p2) > th.PendulumStep && p2.DistanceTo(p3) > th.PendulumStep && p1.DistanceTo(p3) < th.PendulumStep {
			swings++
		}
	}

	result.Score = float64(swings) / float64(triples)
	result.Detected = result.Score >= th.PendulumRatio
	return result
}

func similarity(a, b []domain.Sample, scale float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	if scale <= 0 {
		scale = 1
	}
	var total float64
	for i := range a {
		total += math.Max(0, 1-a[i].DistanceTo(b[i])/scale)
	}
	return total / float64(len(a))
}

func enough(samples []domain.Sample, th Thresholds) bool {
	min := th.MinSamples
	if min < 1 {
		min = 1
	}
	return len(samples) >= min
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package weather

import (
	"math"
	"time"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Harmonic constants for the Arabian Sea coast at Mumbai. The two dominant
// semidiurnal constituents reproduce the familiar pattern of two unequal
// high tides a day; precision beyond that is not needed for categorized
// tide levels.
const (
	meanTideM     = 2.15
	m2AmplitudeM  = 1.45
	s2AmplitudeM  = 0.45
	m2PeriodHours = 12.4206
	s2PeriodHours = 12.0
)

// TideLevel estimates the tide height in meters at the given instant. The
// estimate is deterministic: the same instant always yields the same level.
func TideLevel(t time.Time) float64 {
	h := float64(t.UTC().Unix()) / 3600.0
	level := meanTideM +
		m2AmplitudeM*math.Cos(2*math.Pi*h/m2PeriodHours) +
		s2AmplitudeM*math.Cos(2*math.Pi*h/s2PeriodHours)
	return roundTo(level, 2)
}

// SeasonFor maps a calendar month to the city's season: June through
// September is monsoon, December through February winter, the rest summer.
func SeasonFor(t time.Time) string {
	switch t.Month() {
	case time.June, time.July, time.August, time.September:
		return domain.SeasonMonsoon
	case time.December, time.January, time.February:
		return domain.SeasonWinter
	default:
		return domain.SeasonSummer
	}
}

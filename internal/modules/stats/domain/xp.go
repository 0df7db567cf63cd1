package domain

import "time"

// XP per page read, plus cumulative bonus tiers for long sittings.
const (
	PageXP     = 10
	HourBonus1 = 50
	HourBonus2 = 100
	HourBonus3 = 150
)

// SessionXP computes experience for a single session from pages read and
// duration bonus tiers at one, two, and three reading hours.
func SessionXP(pagesRead int, duration time.Duration) int {
	if pagesRead < 0 {
		pagesRead = 0
	}
	xp := pagesRead * PageXP
	if duration >= time.Hour {
		xp += HourBonus1
	}
	if duration >= 2*time.Hour {
		xp += HourBonus2
	}
	if duration >= 3*time.Hour {
		xp += HourBonus3
	}
	return xp
}

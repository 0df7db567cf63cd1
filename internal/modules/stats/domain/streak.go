package domain

import (
	"sort"
	"time"
)

// DayLayout is the canonical calendar-day key.
const DayLayout = "2006-01-02"

const (
	// PardonGrace is how long after a missed day it may still be forgiven.
	PardonGrace = 48 * time.Hour
	// PardonCooldown is the minimum spacing between pardon uses.
	PardonCooldown = 7 * 24 * time.Hour
)

// DayOf reduces a timestamp to its calendar day in UTC.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func dayNumber(day string) (int64, bool) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return 0, false
	}
	return t.Unix() / 86400, true
}

// StreakResult is a full derivation over the set of reading days.
type StreakResult struct {
	Current int
	Longest int
	LastDay string
}

// ComputeStreak walks the sorted set of reading days (sessions plus pardoned
// days) counting consecutive-day runs. A gap of exactly one calendar day
// continues a run; any other gap resets it. The final run counts as the
// current streak only while it ends today or yesterday relative to today.
func ComputeStreak(days []string, today string) StreakResult {
	todayNum, ok := dayNumber(today)
	if !ok {
		return StreakResult{}
	}

	seen := map[int64]struct{}{}
	nums := make([]int64, 0, len(days))
	last := ""
	for _, day := range days {
		n, ok := dayNumber(day)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		nums = append(nums, n)
		if day > last {
			last = day
		}
	}
	if len(nums) == 0 {
		return StreakResult{}
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	run := 1
	longest := 1
	for i := 1; i < len(nums); i++ {
		if nums[i]-nums[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	current := run
	if todayNum-nums[len(nums)-1] > 1 {
		current = 0
	}
	return StreakResult{Current: current, Longest: longest, LastDay: last}
}

// PardonableDay reports whether missedDay can still be forgiven at now:
// inside the grace window and past the cooldown since the last pardon.
func PardonableDay(missedDay string, now, lastPardonAt time.Time) bool {
	missed, err := time.Parse(DayLayout, missedDay)
	if err != nil {
		return false
	}
	// Grace runs from the end of the missed day.
	graceEnd := missed.Add(24 * time.Hour).Add(PardonGrace)
	if now.After(graceEnd) {
		return false
	}
	if now.Before(missed) {
		return false
	}
	if !lastPardonAt.IsZero() && now.Sub(lastPardonAt) < PardonCooldown {
		return false
	}
	return true
}

// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import "math"

// IndexFor maps a stage progress in [0,100] onto one of activityCount equal-width
// buckets. Progress at or beyond 100 lands in the last bucket.
func IndexFor(progress float64, activityCount int) int {
	if activityCount <= 0 || progress <= 0 || math.IsNaN(progress) {
		return 0
	}
	if progress >= 100 {
		return activityCount - 1
	}

	// progress*count/100 is floor(progress/(100/count)) without the rounding
	// error of dividing by a repeating bucket width.
	idx := int(math.Floor(progress * float64(activityCount) / 100))
	if idx > activityCount-1 {
		idx = activityCount - 1
	}
	return idx
}

// ActivityFor returns the activity label shown at the given progress.
func ActivityFor(progress float64, activities []string) string {
	if len(activities) == 0 {
		return ""
	}
	return activities[IndexFor(progress, len(activities))]
}

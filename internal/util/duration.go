// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"time"
)

// DurationWords renders a duration the way people say it: the largest
// whole unit among days/hours/minutes/seconds. Sub-second durations
// are "0 seconds".
func DurationWords(d time.Duration) string {
	secs := int64(d.Seconds())
	switch {
	case secs < 60:
		return plural(secs, "second")
	case secs < 60*60:
		return plural(secs/60, "minute")
	case secs < 24*60*60:
		return plural(secs/(60*60), "hour")
	default:
		return plural(secs/(24*60*60), "day")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

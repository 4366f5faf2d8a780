package main

import (
	"fmt"
	"time"
)

// secondsToHuman renders a whole number of seconds as "N seconds",
// "N minutes" or "N minutes M seconds".
func secondsToHuman(seconds int) string {
	if seconds < 60 {
		return pluralSeconds(seconds)
	}

	minutes := seconds / 60
	remainder := seconds % 60

	out := fmt.Sprintf("%d minute", minutes)
	if minutes > 1 {
		out += "s"
	}
	if remainder == 0 {
		return out
	}
	return out + " " + pluralSeconds(remainder)
}

// secondsToHumanFloat renders a fractional duration with two decimal places,
// as used for probe response times.
func secondsToHumanFloat(seconds float64) string {
	postfix := "seconds"
	if seconds == 1 {
		postfix = "second"
	}
	return fmt.Sprintf("%.2f %s", seconds, postfix)
}

func pluralSeconds(seconds int) string {
	if seconds == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", seconds)
}

// timestampToHuman renders a Unix timestamp in the local timezone.
func timestampToHuman(timestamp int64) string {
	return time.Unix(timestamp, 0).Local().Format("2006-01-02 15:04:05")
}

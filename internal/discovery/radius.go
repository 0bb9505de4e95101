// Package discovery implements the expanding-radius search for a video the
// viewer has not seen before.
package discovery

import "strconv"

// DefaultStartRadiusMiles is where every discovery run begins.
const DefaultStartRadiusMiles = 10

// maxRadiusMiles is the schedule ceiling; once a step reaches it the
// schedule is exhausted.
const maxRadiusMiles = 1000

// NextRadius returns the radius to try after current, or ok=false when the
// schedule is exhausted. Below 100 miles the step is 5 so dense urban areas
// resolve with fine-grained escalation; at or above 100 the step is 25 so
// sparse regions escalate without excessive round-trips.
func NextRadius(current int) (int, bool) {
	if current >= maxRadiusMiles {
		return 0, false
	}
	if current < 100 {
		return current + 5, true
	}
	return current + 25, true
}

// FormatRadius renders a radius the way the search provider expects it.
func FormatRadius(miles int) string {
	return strconv.Itoa(miles) + "mi"
}

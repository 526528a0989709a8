package simulator

import (
	"sync"
	"time"

	"github.com/nerrad567/homesec-core/internal/occupancy"
)

const (
	// clearCM is reported when nothing stands in front of a sensor.
	clearCM = 180.0
	// bodyCM is reported while a body passes.
	bodyCM = 25.0

	// A person walking through covers the first sensor for leadCovered,
	// reaches the second after trailStart and leaves it at trailEnd.
	leadCovered = 300 * time.Millisecond
	trailStart  = 150 * time.Millisecond
	trailEnd    = 600 * time.Millisecond
)

// DefaultPattern walks three people in and then out again, enough to trip
// a small capacity limit and clear it.
var DefaultPattern = []occupancy.Direction{
	occupancy.DirectionEntry,
	occupancy.DirectionEntry,
	occupancy.DirectionEntry,
	occupancy.DirectionExit,
	occupancy.DirectionExit,
	occupancy.DirectionExit,
}

// Doorway simulates the two doorway distance sensors. One crossing starts
// every interval, cycling through the pattern.
type Doorway struct {
	every   time.Duration
	pattern []occupancy.Direction
	now     func() time.Time

	mu    sync.Mutex
	start time.Time
}

// NewDoorway creates a doorway whose first crossing starts one interval
// after the first measurement.
func NewDoorway(every time.Duration, pattern []occupancy.Direction) *Doorway {
	if len(pattern) == 0 {
		pattern = DefaultPattern
	}
	return &Doorway{every: every, pattern: pattern, now: time.Now}
}

// MeasureDistance satisfies occupancy.Sensor.
func (d *Doorway) MeasureDistance(id occupancy.SensorID) (float64, bool) {
	now := d.now()

	d.mu.Lock()
	if d.start.IsZero() {
		d.start = now
	}
	elapsed := now.Sub(d.start)
	d.mu.Unlock()

	if d.every <= 0 || elapsed < d.every {
		return clearCM, true
	}

	n := int(elapsed/d.every) - 1
	into := elapsed % d.every
	dir := d.pattern[n%len(d.pattern)]

	lead, trail := occupancy.SensorEntry, occupancy.SensorExit
	if dir == occupancy.DirectionExit {
		lead, trail = trail, lead
	}

	switch id {
	case lead:
		if into < leadCovered {
			return bodyCM, true
		}
	case trail:
		if into >= trailStart && into < trailEnd {
			return bodyCM, true
		}
	}
	return clearCM, true
}

package occupancy

import "time"

// Status is the payload published on home/security/status.
type Status struct {
	PeopleCount      int `json:"people_count"`
	MaxPeopleAllowed int `json:"max_people_allowed"`
}

// PublishReason says why a status publish is due.
type PublishReason int

const (
	PublishNone PublishReason = iota
	PublishChange
	PublishHeartbeat
)

func (r PublishReason) String() string {
	switch r {
	case PublishChange:
		return "change"
	case PublishHeartbeat:
		return "heartbeat"
	default:
		return "none"
	}
}

// StatusPublisher decides when occupancy status goes out: immediately when
// the count changes, otherwise once per heartbeat interval. At most one
// publish per tick.
type StatusPublisher struct {
	heartbeat time.Duration

	previous    int
	hasPrevious bool
	lastPublish time.Time
}

// NewStatusPublisher returns a publisher whose first Next call always
// reports a change.
func NewStatusPublisher(heartbeat time.Duration) *StatusPublisher {
	return &StatusPublisher{heartbeat: heartbeat}
}

// Next reports whether status should be published for count at now, and
// records the publish when it should.
func (s *StatusPublisher) Next(count int, now time.Time) PublishReason {
	if !s.hasPrevious || count != s.previous {
		s.previous = count
		s.hasPrevious = true
		s.lastPublish = now
		return PublishChange
	}

	if now.Sub(s.lastPublish) >= s.heartbeat {
		s.lastPublish = now
		return PublishHeartbeat
	}
	return PublishNone
}

// Reset forgets the last published count so the next tick publishes. Used
// after the message channel reconnects.
func (s *StatusPublisher) Reset() {
	s.hasPrevious = false
}

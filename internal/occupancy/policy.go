package occupancy

import "time"

// AlarmState is the capacity alarm.
type AlarmState int

const (
	AlarmNormal AlarmState = iota
	AlarmBlinking
)

func (a AlarmState) String() string {
	if a == AlarmBlinking {
		return "blinking"
	}
	return "normal"
}

// OverCapacity reports whether count breaches maxAllowed. A maximum of zero
// means no limit is enforced.
func OverCapacity(count, maxAllowed int) bool {
	return maxAllowed > 0 && count > maxAllowed
}

// View is what the display should show after a policy step.
type View int

const (
	ViewUnchanged View = iota
	ViewNormal
	ViewAlert
)

// PolicyStep is the outcome of one Evaluate call.
type PolicyStep struct {
	// Render is the display update to apply, if any.
	Render View
	// PublishBlink is set on every blink toggle.
	PublishBlink bool
	// Entered and Left mark transitions into and out of Blinking.
	Entered bool
	Left    bool
}

// Policy is the capacity policy engine.
type Policy struct {
	maxAllowed int
	interval   time.Duration

	state      AlarmState
	blinkOn    bool
	lastToggle time.Time
}

// NewPolicy returns a policy in the Normal state.
func NewPolicy(maxAllowed int, blinkInterval time.Duration) *Policy {
	if maxAllowed < 0 {
		maxAllowed = 0
	}
	return &Policy{maxAllowed: maxAllowed, interval: blinkInterval}
}

// MaxAllowed returns the configured maximum; 0 means unlimited.
func (p *Policy) MaxAllowed() int { return p.maxAllowed }

// SetMaxAllowed changes the maximum. Negative values are clamped to 0; the
// decoder rejects them before they get here. Call Evaluate afterwards.
func (p *Policy) SetMaxAllowed(n int) {
	if n < 0 {
		n = 0
	}
	p.maxAllowed = n
}

// State returns the alarm state.
func (p *Policy) State() AlarmState { return p.state }

// BlinkOn reports whether the alert is currently shown.
func (p *Policy) BlinkOn() bool { return p.blinkOn }

// Evaluate derives the alarm state for count and advances the blink cycle.
//
// While over capacity the blink phase toggles every blink interval, the
// first toggle happening as soon as the alarm is entered. Each toggle
// renders the alert (phase on) or the normal view (phase off) and asks for
// a blink command to be published. Leaving the alarm renders the normal
// view exactly once.
func (p *Policy) Evaluate(count int, now time.Time) PolicyStep {
	var step PolicyStep

	if !OverCapacity(count, p.maxAllowed) {
		if p.state == AlarmBlinking {
			p.state = AlarmNormal
			p.blinkOn = false
			p.lastToggle = time.Time{}
			step.Left = true
			step.Render = ViewNormal
		}
		return step
	}

	if p.state == AlarmNormal {
		p.state = AlarmBlinking
		step.Entered = true
	}

	if p.lastToggle.IsZero() || now.Sub(p.lastToggle) >= p.interval {
		p.lastToggle = now
		p.blinkOn = !p.blinkOn
		step.PublishBlink = true
		if p.blinkOn {
			step.Render = ViewAlert
		} else {
			step.Render = ViewNormal
		}
	}
	return step
}

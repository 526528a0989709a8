package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homesec-core/internal/actuator"
	"github.com/nerrad567/homesec-core/internal/audit"
	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesec-core/internal/metrics"
	"github.com/nerrad567/homesec-core/internal/occupancy"
)

const (
	// maxPollInterval bounds how long an inbound command waits for the loop.
	maxPollInterval = 10 * time.Millisecond

	inboxSize      = 64
	auditQueueSize = 64
	auditTimeout   = 2 * time.Second
)

// Notifier channels.
const (
	ChannelStatus    = "status"
	ChannelActuators = "actuators"
)

// ErrInboxFull is returned by Deliver when the inbound queue is full.
var ErrInboxFull = errors.New("controller: inbox full")

// ErrUnexpectedTopic is returned by HandleMessage for a topic the control
// loop does not handle.
var ErrUnexpectedTopic = errors.New("controller: unexpected topic")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Publisher sends outbound messages without blocking. *mqtt.Outbox
// satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Notifier fans state changes out to live panel clients.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// AuditRecorder persists applied commands. audit.Repository satisfies it.
type AuditRecorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Logger is the logging surface the controller needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, any) {}

// Deps holds the collaborators of a Controller. Publisher and the hardware
// fields are required; the rest default to no-ops.
type Deps struct {
	Occupancy config.OccupancyConfig
	Alarm     config.AlarmConfig
	Actuators config.ActuatorsConfig

	Sensor     occupancy.Sensor
	Display    occupancy.Display
	Lights     actuator.LightArray
	Humidifier actuator.Humidifier
	Door       actuator.Door

	Publisher Publisher
	Notifier  Notifier
	Audit     AuditRecorder
	Metrics   *metrics.Collectors
	Logger    Logger
	Clock     Clock
}

// Snapshot is the loop state published after every iteration.
type Snapshot struct {
	PeopleCount      int            `json:"people_count"`
	MaxPeopleAllowed int            `json:"max_people_allowed"`
	Alarm            string         `json:"alarm"`
	BlinkOn          bool           `json:"blink_on"`
	CounterPhase     string         `json:"counter_phase"`
	BlinkSequence    bool           `json:"blink_sequence"`
	Actuators        actuator.State `json:"actuators"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type inbound struct {
	topic   string
	payload []byte
}

type rendered struct {
	valid      bool
	view       occupancy.View
	maxAllowed int
	count      int
}

// Controller is the control loop. Deliver, Resync and Snapshot are safe
// for concurrent use; Step and Run must be called from one goroutine.
type Controller struct {
	counter    *occupancy.Counter
	policy     *occupancy.Policy
	status     *occupancy.StatusPublisher
	dispatcher *actuator.Dispatcher

	display   occupancy.Display
	publisher Publisher
	notifier  Notifier
	auditor   AuditRecorder
	metrics   *metrics.Collectors
	logger    Logger
	clock     Clock

	sampleInterval time.Duration
	pollInterval   time.Duration
	lastSample     time.Time
	shown          rendered

	inbox      chan inbound
	auditQueue chan audit.Entry
	resync     atomic.Bool
	snapshot   atomic.Pointer[Snapshot]
}

// New builds a controller with count 0 and the configured initial limit.
func New(deps Deps) *Controller {
	c := &Controller{
		counter:    occupancy.NewCounter(deps.Sensor, deps.Occupancy),
		policy:     occupancy.NewPolicy(deps.Occupancy.InitialMaxPeople, deps.Alarm.BlinkInterval),
		status:     occupancy.NewStatusPublisher(deps.Occupancy.HeartbeatInterval),
		dispatcher: actuator.NewDispatcher(deps.Lights, deps.Humidifier, deps.Door, deps.Actuators, deps.Alarm),

		display:   deps.Display,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		auditor:   deps.Audit,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		clock:     deps.Clock,

		sampleInterval: deps.Occupancy.SampleInterval,
		pollInterval:   maxPollInterval,

		inbox:      make(chan inbound, inboxSize),
		auditQueue: make(chan audit.Entry, auditQueueSize),
	}

	if c.display == nil {
		c.display = nopDisplay{}
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.sampleInterval > 0 && c.sampleInterval < c.pollInterval {
		c.pollInterval = c.sampleInterval
	}

	c.storeSnapshot(time.Time{})
	return c
}

type nopDisplay struct{}

func (nopDisplay) ShowNormal(int, int) {}
func (nopDisplay) ShowAlert()          {}

// Deliver queues an inbound message for the next iteration. It never
// blocks; when the inbox is full or topic is not a command topic the
// message is dropped and false returned. The payload is copied.
func (c *Controller) Deliver(topic string, payload []byte) bool {
	if !mqtt.IsCommandTopic(topic) {
		c.logger.Warn("dropping message on unexpected topic", "topic", topic)
		return false
	}
	msg := inbound{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case c.inbox <- msg:
		return true
	default:
		c.logger.Warn("inbox full, dropping message", "topic", topic)
		return false
	}
}

// HandleMessage adapts Deliver to mqtt.MessageHandler.
func (c *Controller) HandleMessage(topic string, payload []byte) error {
	if !mqtt.IsCommandTopic(topic) {
		return fmt.Errorf("%w: %s", ErrUnexpectedTopic, topic)
	}
	if !c.Deliver(topic, payload) {
		return ErrInboxFull
	}
	return nil
}

// Resync forces a status publish on the next sample. Call after the broker
// link comes back so subscribers see current state immediately.
func (c *Controller) Resync() {
	c.resync.Store(true)
}

// Snapshot returns the state stored at the end of the last iteration.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Run drives Step until ctx is cancelled. Audit writes run on their own
// goroutine, which Run waits for before returning.
func (c *Controller) Run(ctx context.Context) error {
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		c.runAudit(ctx)
	}()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.logger.Info("control loop started",
		"sample_interval", c.sampleInterval,
		"max_people_allowed", c.policy.MaxAllowed(),
	)

	for {
		select {
		case <-ctx.Done():
			<-auditDone
			c.logger.Info("control loop stopped", "people_count", c.counter.Count())
			return nil
		case <-ticker.C:
			c.Step(c.clock.Now())
		}
	}
}

// Step runs one loop iteration at now.
func (c *Controller) Step(now time.Time) {
	if c.resync.Swap(false) {
		c.status.Reset()
	}

	c.drainInbox(now)

	if c.lastSample.IsZero() || now.Sub(c.lastSample) >= c.sampleInterval {
		c.lastSample = now
		c.sample(now)
	}

	c.evaluatePolicy(now)

	if err := c.dispatcher.Tick(now); err != nil {
		c.logger.Warn("blink sequence step failed", "error", err)
	}

	c.storeSnapshot(now)
}

func (c *Controller) drainInbox(now time.Time) {
	for {
		select {
		case msg := <-c.inbox:
			c.handle(msg, now)
		default:
			return
		}
	}
}

func (c *Controller) handle(msg inbound, now time.Time) {
	if msg.topic == mqtt.TopicSecurityCount {
		c.handleCapacity(msg)
		return
	}

	res, err := c.dispatcher.Handle(msg.topic, msg.payload, now)
	var decodeErr *actuator.DecodeError
	switch {
	case err == nil:
		c.applied(res)
	case errors.As(err, &decodeErr):
		c.metrics.Commands.WithLabelValues(msg.topic, metrics.ResultMalformed).Inc()
		c.logger.Warn("dropping malformed command", "topic", msg.topic, "error", err)
	case errors.Is(err, actuator.ErrOutOfRange), errors.Is(err, actuator.ErrBlinkInProgress):
		c.metrics.Commands.WithLabelValues(msg.topic, metrics.ResultIgnored).Inc()
		c.logger.Debug("command ignored", "topic", msg.topic, "reason", err)
	default:
		c.metrics.Commands.WithLabelValues(msg.topic, metrics.ResultFailed).Inc()
		c.logger.Warn("applying command failed", "topic", msg.topic, "error", err)
	}
}

func (c *Controller) handleCapacity(msg inbound) {
	n, err := occupancy.ParseCapacity(msg.payload)
	if err != nil {
		c.metrics.Commands.WithLabelValues(msg.topic, metrics.ResultMalformed).Inc()
		c.logger.Warn("dropping malformed command", "topic", msg.topic, "error", err)
		return
	}

	c.policy.SetMaxAllowed(n)
	c.status.Reset()
	c.metrics.Commands.WithLabelValues(msg.topic, metrics.ResultApplied).Inc()
	c.logger.Info("capacity limit set", "max_people_allowed", n)
}

func (c *Controller) applied(res actuator.Result) {
	cmd := res.Command
	c.metrics.Commands.WithLabelValues(cmd.Topic(), metrics.ResultApplied).Inc()
	c.logger.Debug("command applied", "topic", cmd.Topic(), "kind", cmd.Kind())

	var mirrored json.RawMessage
	if res.Mirror != nil {
		if err := c.publisher.PublishJSON(res.Mirror.Topic, res.Mirror.Payload); err != nil {
			c.logger.Debug("mirror not published", "topic", res.Mirror.Topic, "error", err)
		}
		mirrored, _ = json.Marshal(res.Mirror.Payload)
	}
	c.notifier.Broadcast(ChannelActuators, c.dispatcher.State())

	payload, _ := json.Marshal(actuator.Payload(cmd))
	c.enqueueAudit(audit.Entry{
		Topic:    cmd.Topic(),
		Kind:     string(cmd.Kind()),
		Payload:  payload,
		Mirrored: mirrored,
	})
}

func (c *Controller) sample(now time.Time) {
	dir := c.counter.Tick(now)
	if dir != occupancy.DirectionNone {
		c.metrics.Crossings.WithLabelValues(dir.String()).Inc()
		c.logger.Debug("crossing confirmed", "direction", dir, "people_count", c.counter.Count())
	}

	reason := c.status.Next(c.counter.Count(), now)
	if reason == occupancy.PublishNone {
		return
	}

	status := occupancy.Status{
		PeopleCount:      c.counter.Count(),
		MaxPeopleAllowed: c.policy.MaxAllowed(),
	}
	if err := c.publisher.PublishJSON(mqtt.TopicSecurityStatus, status); err != nil {
		c.logger.Debug("status not published", "reason", reason, "error", err)
	}
	c.notifier.Broadcast(ChannelStatus, status)
}

func (c *Controller) evaluatePolicy(now time.Time) {
	count := c.counter.Count()
	step := c.policy.Evaluate(count, now)

	if step.Entered {
		c.logger.Info("occupancy over capacity",
			"people_count", count, "max_people_allowed", c.policy.MaxAllowed())
	}
	if step.Left {
		c.logger.Info("occupancy back within capacity",
			"people_count", count, "max_people_allowed", c.policy.MaxAllowed())
	}

	if step.PublishBlink {
		if err := c.publisher.PublishJSON(mqtt.TopicSecurityCommand, actuator.Payload(actuator.AlarmCommand{})); err != nil {
			c.logger.Debug("blink command not published", "error", err)
		}
	}

	view := step.Render
	if view == occupancy.ViewUnchanged && c.policy.State() == occupancy.AlarmNormal {
		// Keep the normal view current as the count and limit move.
		view = occupancy.ViewNormal
	}
	c.render(view, count)
}

// render draws view unless the screen already shows exactly that.
func (c *Controller) render(view occupancy.View, count int) {
	next := rendered{valid: true, view: view, maxAllowed: c.policy.MaxAllowed(), count: count}

	switch view {
	case occupancy.ViewNormal:
		if c.shown == next {
			return
		}
		c.display.ShowNormal(next.maxAllowed, next.count)
	case occupancy.ViewAlert:
		c.display.ShowAlert()
	default:
		return
	}
	c.shown = next
}

func (c *Controller) storeSnapshot(now time.Time) {
	snap := &Snapshot{
		PeopleCount:      c.counter.Count(),
		MaxPeopleAllowed: c.policy.MaxAllowed(),
		Alarm:            c.policy.State().String(),
		BlinkOn:          c.policy.BlinkOn(),
		CounterPhase:     c.counter.Phase().String(),
		BlinkSequence:    c.dispatcher.Blinking(),
		Actuators:        c.dispatcher.State(),
		UpdatedAt:        now,
	}
	c.snapshot.Store(snap)

	c.metrics.OccupancyCount.Set(float64(snap.PeopleCount))
	c.metrics.MaxAllowed.Set(float64(snap.MaxPeopleAllowed))
	c.metrics.AlarmBlinking.Set(metrics.BoolValue(c.policy.State() == occupancy.AlarmBlinking))
}

func (c *Controller) enqueueAudit(e audit.Entry) {
	if c.auditor == nil {
		return
	}
	select {
	case c.auditQueue <- e:
	default:
		c.logger.Warn("audit queue full, entry dropped", "topic", e.Topic)
	}
}

func (c *Controller) runAudit(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.auditQueue:
			c.writeAudit(ctx, e)
		}
	}
}

func (c *Controller) writeAudit(ctx context.Context, e audit.Entry) {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()
	if err := c.auditor.Create(ctx, &e); err != nil {
		c.logger.Warn("audit write failed", "topic", e.Topic, "error", err)
	}
}

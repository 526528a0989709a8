package controller

import (
	"fmt"

	"github.com/nerrad567/homesec-core/internal/actuator"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesec-core/internal/occupancy"
)

// Delivery says how a panel command left the sender.
type Delivery string

const (
	// DeliveryMQTT means the command was queued for the broker and will come
	// back to the loop through the subscription like any node's command.
	DeliveryMQTT Delivery = "mqtt"
	// DeliveryLocal means the link was down and the command went straight
	// into the loop's inbox.
	DeliveryLocal Delivery = "local"
)

// RawPublisher enqueues a raw payload. *mqtt.Outbox satisfies it.
type RawPublisher interface {
	Publish(topic string, payload []byte) error
}

// LinkState reports whether the broker link is up.
type LinkState interface {
	IsConnected() bool
}

// Sender routes commands issued from the HTTP panel.
type Sender struct {
	outbox RawPublisher
	link   LinkState
	loop   *Controller
}

// NewSender returns a sender publishing through outbox while link is up and
// delivering to loop otherwise.
func NewSender(outbox RawPublisher, link LinkState, loop *Controller) *Sender {
	return &Sender{outbox: outbox, link: link, loop: loop}
}

// Send validates payload against the schema of topic and routes it. Invalid
// payloads return the decoder error and go nowhere.
func (s *Sender) Send(topic string, payload []byte) (Delivery, error) {
	if err := validate(topic, payload); err != nil {
		return "", err
	}

	if s.link != nil && s.link.IsConnected() {
		if err := s.outbox.Publish(topic, payload); err != nil {
			return "", fmt.Errorf("publishing %s: %w", topic, err)
		}
		return DeliveryMQTT, nil
	}

	if !s.loop.Deliver(topic, payload) {
		return "", ErrInboxFull
	}
	return DeliveryLocal, nil
}

func validate(topic string, payload []byte) error {
	if topic == mqtt.TopicSecurityCount {
		_, err := occupancy.ParseCapacity(payload)
		return err
	}
	_, err := actuator.Decode(topic, payload)
	return err
}

// SendCommand is Send without the delivery report.
func (s *Sender) SendCommand(topic string, payload []byte) error {
	_, err := s.Send(topic, payload)
	return err
}

package queue

import "github.com/vurg/notification-service/app/entity"

// Delivery is one inbound broker message awaiting processing. Ack is called
// once the message reached a terminal outcome.
type Delivery struct {
	ID      string
	Topic   string
	Payload []byte
	Ack     func()
}

func (d Delivery) ack() {
	if d.Ack != nil {
		d.Ack()
	}
}

type job struct {
	messageID string
	event     entity.AppointmentEvent
	done      func()
}

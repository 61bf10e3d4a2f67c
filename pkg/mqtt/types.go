package mqtt

import "fmt"

// Message is a published message.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// TimeoutError reports a broker operation not completed in time.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mqtt %s timeout", e.Op)
}

package mqtt

import "sync"

type memorySub struct {
	filter  string
	handler Handler
}

// Memory is an in-process broker implementing PubSub. Handlers are called
// synchronously from Pub.
type Memory struct {
	lock     sync.Mutex
	subs     []memorySub
	retained map[string]Message
	history  []Message
}

// NewMemory creates an empty broker.
func NewMemory() *Memory {
	return &Memory{retained: make(map[string]Message)}
}

// Sub implements PubSub. Retained messages matching topic are delivered
// right away.
func (m *Memory) Sub(topic string, handler Handler) error {
	m.lock.Lock()
	m.subs = append(m.subs, memorySub{filter: topic, handler: handler})
	var retained []Message
	for t, msg := range m.retained {
		if MatchTopic(t, topic) {
			retained = append(retained, msg)
		}
	}
	m.lock.Unlock()
	for _, msg := range retained {
		handler(msg.Topic, msg.Payload)
	}
	return nil
}

// Pub implements PubSub. An empty retained payload clears the retained
// message.
func (m *Memory) Pub(topic string, payload []byte, qos byte, retain bool) error {
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...), QoS: qos, Retain: retain}
	m.lock.Lock()
	m.history = append(m.history, msg)
	if retain {
		if len(payload) == 0 {
			delete(m.retained, topic)
		} else {
			m.retained[topic] = msg
		}
	}
	var handlers []Handler
	for _, s := range m.subs {
		if MatchTopic(topic, s.filter) {
			handlers = append(handlers, s.handler)
		}
	}
	m.lock.Unlock()
	for _, h := range handlers {
		h(topic, msg.Payload)
	}
	return nil
}

// Retained returns the retained message of topic.
func (m *Memory) Retained(topic string) (Message, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	msg, ok := m.retained[topic]
	return msg, ok
}

// Published returns the messages published so far on topics matching
// filter.
func (m *Memory) Published(filter string) []Message {
	m.lock.Lock()
	defer m.lock.Unlock()
	var found []Message
	for _, msg := range m.history {
		if MatchTopic(msg.Topic, filter) {
			found = append(found, msg)
		}
	}
	return found
}

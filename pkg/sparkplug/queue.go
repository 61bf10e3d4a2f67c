package sparkplug

import (
	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/mqtt"
)

// NewQueue creates the broker connection of n with NDEATH as the will and
// attaches it to n. Topics are not prefixed and every (re)connection
// publishes NBIRTH.
func NewQueue(brokerURL string, n *EdgeNode) (*mqtt.Queue, error) {
	opts, _, err := mqtt.ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID != "" {
		opts.SetClientID(opts.ClientID + "-sparkplug")
	}
	will, err := n.Death()
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(will.Topic, will.Payload, will.QoS, will.Retain)
	q := mqtt.NewQueue(opts, "")
	q.OnConnect = func(*mqtt.Queue) {
		if err := n.Birth(); err != nil {
			glog.Errorf("sparkplug: birth: %v", err)
		}
	}
	n.PubSub = q
	return q, nil
}

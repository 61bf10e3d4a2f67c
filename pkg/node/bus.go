package node

import (
	"fmt"
	"strings"

	"github.com/robotalks/plc.go/pkg/busmon"
	"github.com/robotalks/plc.go/pkg/can/cyphal"
	"github.com/robotalks/plc.go/pkg/can/socketcan"
	"github.com/robotalks/plc.go/pkg/can/tunnel"
	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Bus is the attachment of a node to the CAN bus.
type Bus struct {
	Transport transfer.Transport
	// Tasks keep the attachment running.
	Tasks []fx.Runnable
	// Alerts and Recoverer are set when the bus reports controller errors.
	Alerts    busmon.AlertSource
	Recoverer busmon.Recoverer
}

// LoopNetwork connects the nodes of one process attached with "loop".
var LoopNetwork = transfer.NewNetwork()

// OpenBus attaches node to the bus named by spec:
//
//	loop              the in-process LoopNetwork
//	socketcan:<if>    a SocketCAN interface
//	<url>             a CAN tunnel, see tunnel.Dial
func OpenBus(spec string, node transfer.NodeID) (*Bus, error) {
	switch {
	case spec == "loop":
		ep := LoopNetwork.Attach(node)
		return &Bus{Transport: ep, Tasks: []fx.Runnable{ep}}, nil
	case strings.HasPrefix(spec, "socketcan:"):
		ifname := strings.TrimPrefix(spec, "socketcan:")
		sock, err := socketcan.Open(ifname)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", ifname, err)
		}
		t := cyphal.New(sock, node)
		return &Bus{
			Transport: t,
			Tasks:     []fx.Runnable{sock, t},
			Alerts:    sock,
			Recoverer: &socketcan.Recoverer{Interface: ifname},
		}, nil
	case strings.Contains(spec, "://"):
		tb, err := tunnel.Dial(spec)
		if err != nil {
			return nil, err
		}
		t := cyphal.New(tb, node)
		return &Bus{Transport: t, Tasks: []fx.Runnable{tb, t}}, nil
	}
	return nil, fmt.Errorf("unknown bus %q", spec)
}

package tunnel

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	"github.com/robotalks/plc.go/pkg/mqtt"
)

// DefaultBaudRate is used for serial links without a baud parameter.
const DefaultBaudRate = 115200

// OpenSerial opens a serial line as a Link. The line is 8N1.
func OpenSerial(device string, baud int) (*Link, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return NewLink(port), nil
}

// Dial connects a tunnel by URL:
//
//	tcp://host:port
//	ws://host:port/path (or wss://)
//	serial:///dev/ttyUSB0?baud=115200
//	mqtt://host:1883/prefix/?station=name
//
// Over MQTT every station publishes on <prefix>can/<station>.
func Dial(rawURL string) (*Bus, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return NewBus(NewStream(conn)), nil
	case "ws", "wss":
		origin := "http://" + u.Host + "/"
		if u.Scheme == "wss" {
			origin = "https://" + u.Host + "/"
		}
		conn, err := websocket.Dial(u.String(), "", origin)
		if err != nil {
			return nil, err
		}
		return NewBus(NewWebSocket(conn)), nil
	case "serial":
		baud := 0
		if val := u.Query().Get("baud"); val != "" {
			if baud, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("invalid baud rate %q", val)
			}
		}
		link, err := OpenSerial(u.Path, baud)
		if err != nil {
			return nil, err
		}
		return NewBus(link), nil
	case "mqtt", "mqtts":
		return dialMQTT(u)
	}
	return nil, fmt.Errorf("unsupported tunnel scheme %q", u.Scheme)
}

type mqttConn struct {
	*mqtt.ReadWriter
	queue *mqtt.Queue
}

func (c *mqttConn) Close() error {
	c.ReadWriter.Close()
	return c.queue.Close()
}

func dialMQTT(u *url.URL) (*Bus, error) {
	station := u.Query().Get("station")
	if station == "" {
		host, _ := os.Hostname()
		station = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	q, err := mqtt.NewQueueFromURL(u.String(), nil)
	if err != nil {
		return nil, err
	}
	if err = q.Connect(); err != nil {
		return nil, err
	}
	rw, err := mqtt.NewPacketReadWriter(q, "can", station)
	if err != nil {
		q.Close()
		return nil, err
	}
	return NewBus(&mqttConn{ReadWriter: rw, queue: q}), nil
}

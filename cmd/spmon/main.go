package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/robotalks/plc.go/pkg/mqtt"
	"github.com/robotalks/plc.go/pkg/sparkplug"
)

var (
	mqttURL    = "mqtt://localhost:1883/"
	statusRoot = "plc/"
)

func init() {
	if val := os.Getenv("PLC_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&statusRoot, "status-root", statusRoot, "Topic prefix of PLC status, empty to skip.")
}

func formatMetrics(p *sparkplug.Payload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "seq=%d", p.GetSeq())
	for _, m := range p.Metrics {
		if v, ok := m.Uint(); ok {
			fmt.Fprintf(&sb, " %s(%s)=%d", m.GetName(), m.Type(), v)
		} else {
			fmt.Fprintf(&sb, " %s(%s)=null", m.GetName(), m.Type())
		}
	}
	return sb.String()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, nil)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub(sparkplug.Namespace+"/#", mqtt.Handler(func(topic string, payload []byte) {
		p, err := sparkplug.DecodePayload(payload)
		if err != nil {
			log.Printf("%s: bad payload: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, formatMetrics(p))
	}))
	if statusRoot != "" {
		q.Sub(statusRoot+"#", mqtt.Handler(func(topic string, payload []byte) {
			log.Printf("%s: %s", topic, string(payload))
		}))
	}
	<-(chan struct{})(nil)
}

package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/config"
	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/mqtt"
	"github.com/robotalks/plc.go/pkg/node"
	"github.com/robotalks/plc.go/pkg/plc"
	"github.com/robotalks/plc.go/pkg/plc/programs"
	"github.com/robotalks/plc.go/pkg/sparkplug"
	"github.com/robotalks/plc.go/pkg/transfer"
)

func init() {
	node.SetupFlags()
}

func main() {
	flag.Parse()
	conf := node.NewConfig()

	layout, err := config.Load(conf.LayoutFile)
	if err != nil {
		node.Die(node.Fatal(node.ReasonInitFailed, err))
	}

	var program plc.Program
	if conf.Program != "" {
		if program, err = programs.New(conf.Program); err != nil {
			node.Die(node.Fatal(node.ReasonInitFailed, err))
		}
	}

	machineID, err := node.MachineID()
	if err != nil {
		glog.Warningf("machine ID unavailable, using node name: %v", err)
		machineID = layout.Name
	}

	bus, err := node.OpenBus(conf.Bus, transfer.NodeID(layout.NodeID))
	if err != nil {
		node.Die(node.Fatal(node.ReasonInitFailed, err))
	}

	env := node.Env{
		Bus:        bus,
		Pins:       openPins(),
		StatusRoot: conf.StatusRoot,
		MachineID:  machineID,
	}

	var statusQueue, edgeQueue *mqtt.Queue
	if conf.MQTTBrokerURL != "" {
		if statusQueue, err = mqtt.NewQueueFromURL(conf.MQTTBrokerURL, node.StatusWill(conf.StatusRoot)); err != nil {
			node.Die(node.Fatal(node.ReasonInitFailed, err))
		}
		env.Status = statusQueue
		if layout.Uses(ioblock.DriverSparkplug) {
			edgeID := conf.EdgeID
			if edgeID == "" {
				edgeID = layout.Sparkplug.Edge
			}
			if edgeID == "" {
				edgeID = node.EdgeID(machineID)
			}
			env.Edge = sparkplug.NewEdgeNode(nil, layout.Sparkplug.Group, edgeID, uint64(time.Now().Unix())%256)
			if edgeQueue, err = sparkplug.NewQueue(conf.MQTTBrokerURL, env.Edge); err != nil {
				node.Die(node.Fatal(node.ReasonInitFailed, err))
			}
		}
	}

	n, err := node.New(layout, program, env)
	if err != nil {
		node.Die(err)
	}
	n.AutoStart = conf.AutoStart

	if statusQueue != nil {
		statusQueue.OnConnect = func(*mqtt.Queue) {
			if err := n.Reporter.Republish(); err != nil {
				glog.Errorf("republish status: %v", err)
			}
		}
		if err := statusQueue.Connect(); err != nil {
			node.Die(node.Fatal(node.ReasonInitFailed, err))
		}
		defer statusQueue.Close()
	}

	if err := n.Init(context.Background()); err != nil {
		node.Die(err)
	}

	// NBIRTH needs the metrics bound by Init.
	if edgeQueue != nil {
		if err := edgeQueue.Connect(); err != nil {
			node.Die(node.Fatal(node.ReasonInitFailed, err))
		}
		defer edgeQueue.Close()
	}

	runner := fx.NewRunner().HandleSignals()
	err = n.Run(runner.Context)
	glog.Infof("node stopped: %v", err)
	if err != nil {
		node.Die(err)
	}
	glog.Flush()
}

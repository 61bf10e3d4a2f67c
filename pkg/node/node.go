package node

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/busmon"
	"github.com/robotalks/plc.go/pkg/config"
	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/ioblock/gpio"
	"github.com/robotalks/plc.go/pkg/mqtt"
	"github.com/robotalks/plc.go/pkg/plc"
	"github.com/robotalks/plc.go/pkg/remoteio"
	"github.com/robotalks/plc.go/pkg/sparkplug"
)

// SoftwareVersion is reported in GetInfo.
var SoftwareVersion = remoteio.Version{Major: 1, Minor: 0}

// Env is what the node is attached to.
type Env struct {
	Bus  *Bus
	Pins gpio.Pins
	// Status carries the status topics, nil without broker.
	Status mqtt.PubSub
	// Edge publishes Sparkplug-bound blocks, nil without broker.
	Edge *sparkplug.EdgeNode
	// StatusRoot prefixes the status topics, plc/ if empty.
	StatusRoot string
	MachineID  string
}

// Node owns the tasks of a PLC node.
type Node struct {
	Layout    *config.Layout
	Env       Env
	AutoStart bool

	Table       *ioblock.Table
	Scheduler   *plc.Scheduler
	Status      *remoteio.NodeStatus
	Caller      *remoteio.Caller
	Requester   *remoteio.Requester
	Server      *remoteio.Server
	Heartbeater *remoteio.Heartbeater
	Peers       *remoteio.Peers
	Monitor     *busmon.Monitor
	Reporter    *StatusReporter

	restart chan Reason
}

// New builds the node from layout. program is nil for an I/O-only node.
func New(layout *config.Layout, program plc.Program, env Env) (*Node, error) {
	if env.Bus == nil {
		return nil, errors.New("bus required")
	}
	n := &Node{
		Layout:  layout,
		Env:     env,
		Status:  remoteio.NewNodeStatus(),
		Peers:   remoteio.NewPeers(),
		restart: make(chan Reason, 1),
	}
	t := env.Bus.Transport

	n.Caller = remoteio.NewCaller(t)
	if timeout := layout.Timing.TransferTimeout; timeout > 0 {
		n.Caller.Timeout = timeout
	}
	n.Requester = remoteio.NewRequester(n.Caller, layout.Timing.PollInterval)

	table, err := layout.Build(config.Drivers{
		Pins:      env.Pins,
		Requester: n.Requester,
		Sparkplug: env.Edge,
	})
	if err != nil {
		return nil, Fatal(ReasonInitFailed, err)
	}
	n.Table = table
	n.Scheduler = plc.New(table, program)
	n.Scheduler.StartTimeout = layout.Timing.StartTimeout

	n.Server = &remoteio.Server{
		Transport: t,
		Mux:       &remoteio.Multiplexer{Table: table},
		Info: remoteio.NodeInfo{
			Protocol: remoteio.ProtocolVersion,
			Software: SoftwareVersion,
			UniqueID: UniqueID(env.MachineID, layout.Name),
			Name:     layout.Name,
		},
		OnRestart: func() { n.Restart(ReasonRemoteRestart) },
	}
	n.Heartbeater = remoteio.NewHeartbeater(t, n.Status)
	if period := layout.Timing.StatusPeriod; period > 0 {
		n.Heartbeater.Period = period
	}

	if env.Bus.Alerts != nil && env.Bus.Recoverer != nil {
		n.Monitor = busmon.New(env.Bus.Alerts, env.Bus.Recoverer)
		if delay := layout.Timing.SettleDelay; delay > 0 {
			n.Monitor.SettleDelay = delay
		}
		n.Monitor.OnStateChange(func(from, to busmon.State) {
			n.Status.SetHealth(HealthOf(to))
		})
	}

	if env.Status != nil {
		root := env.StatusRoot
		if root == "" {
			root = "plc/"
		}
		n.Reporter = &StatusReporter{
			PubSub:  env.Status,
			Root:    root,
			OnPause: func() { n.Scheduler.Toggle() },
			OnReset: func() { n.Restart(ReasonOperatorReset) },
		}
	}
	if env.Edge != nil {
		env.Edge.OnReboot = func() { n.Restart(ReasonRemoteRestart) }
	}

	n.Scheduler.OnStateChange(func(state plc.State) {
		n.Status.SetMode(ModeOf(state))
		if n.Reporter != nil {
			if err := n.Reporter.Report(StatusOf(state)); err != nil {
				glog.Errorf("report status: %v", err)
			}
		}
	})
	return n, nil
}

// HealthOf maps the bus state to the heartbeat health.
func HealthOf(state busmon.State) remoteio.Health {
	switch state {
	case busmon.ErrorPassive:
		return remoteio.HealthCaution
	case busmon.BusOff:
		return remoteio.HealthWarning
	}
	return remoteio.HealthNominal
}

// ModeOf maps the scheduler state to the heartbeat mode.
func ModeOf(state plc.State) remoteio.Mode {
	if state == plc.StateRunning {
		return remoteio.ModeOperational
	}
	return remoteio.ModeMaintenance
}

// Init initializes the blocks and subscribes to requests and commands.
// Failures are FatalErrors.
func (n *Node) Init(ctx context.Context) error {
	if n.Reporter != nil {
		if err := n.Reporter.Report(StatusStarting); err != nil {
			glog.Errorf("report status: %v", err)
		}
	}
	if err := n.Scheduler.Init(ctx); err != nil {
		return Fatal(ReasonInitFailed, err)
	}
	if n.Env.Edge != nil {
		if err := n.Env.Edge.Check(); err != nil {
			return Fatal(ReasonInitFailed, err)
		}
		if err := n.Env.Edge.Listen(); err != nil {
			return Fatal(ReasonInitFailed, err)
		}
	}
	t := n.Env.Bus.Transport
	for _, listen := range []func() error{
		n.Server.Listen,
		n.Requester.Listen,
		func() error { return n.Peers.Listen(t) },
	} {
		if err := listen(); err != nil {
			return Fatal(ReasonInitFailed, err)
		}
	}
	if n.Reporter != nil {
		if err := n.Reporter.Listen(); err != nil {
			return Fatal(ReasonInitFailed, err)
		}
	}
	glog.Infof("node %d %q initialized", t.LocalNode(), n.Layout.Name)
	if n.AutoStart {
		n.Scheduler.SetState(plc.StateRunning)
	} else if n.Reporter != nil {
		if err := n.Reporter.Report(StatusOf(n.Scheduler.State())); err != nil {
			glog.Errorf("report status: %v", err)
		}
	}
	return nil
}

// Restart asks Run to stop with reason. Only the first request counts.
func (n *Node) Restart(reason Reason) {
	select {
	case n.restart <- reason:
		glog.Infof("restart requested: %s", reason)
	default:
	}
}

// Run runs all tasks until ctx is done or a task fails. A restart request
// or a fatal task failure is returned as FatalError.
func (n *Node) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	runner.FailFast = true
	runner.Go(n.Env.Bus.Tasks...)
	runner.Go(
		n.Caller,
		fx.NamedRun("remoteio", fx.RunFunc(n.runRequester)),
		n.Heartbeater,
		fx.NamedRun(n.Scheduler.Name(), fx.RunFunc(n.runScheduler)),
		fx.NamedRun("restart", fx.RunFunc(n.waitRestart)),
	)
	if n.Monitor != nil {
		runner.Go(fx.NamedRun(n.Monitor.Name(), fx.RunFunc(func(ctx context.Context) error {
			err := n.Monitor.Run(ctx)
			if errors.Is(err, busmon.ErrRecoveryFailed) {
				return Fatal(ReasonBusOffUnrecoverable, err)
			}
			return err
		})))
	}
	return runner.Wait()
}

// runRequester starts polling once the blocks are initialized.
func (n *Node) runRequester(ctx context.Context) error {
	if err := n.Scheduler.Initialized().Wait(ctx, n.Layout.Timing.InitTimeout); err != nil {
		if errors.Is(err, fx.ErrLatchTimeout) {
			return Fatal(ReasonInitializationTimeout, err)
		}
		return err
	}
	return n.Requester.Run(ctx)
}

func (n *Node) runScheduler(ctx context.Context) error {
	err := n.Scheduler.Run(ctx)
	if errors.Is(err, plc.ErrStartTimeout) {
		return Fatal(ReasonInitializationTimeout, err)
	}
	return err
}

func (n *Node) waitRestart(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case reason := <-n.restart:
		return Fatal(reason, nil)
	}
}

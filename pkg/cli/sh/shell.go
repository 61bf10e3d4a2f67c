// Package sh is the interactive remote I/O shell: it attaches to the bus as
// a node of its own and talks to the selected node.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	fx "github.com/robotalks/plc.go/pkg/framework"
	"github.com/robotalks/plc.go/pkg/node"
	"github.com/robotalks/plc.go/pkg/remoteio"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// Config provides the options to attach the shell to a bus.
type Config struct {
	Bus       string
	LocalNode uint
	Target    uint
	Timeout   time.Duration
}

var defaultConfig = Config{
	Bus:       "loop",
	LocalNode: 126,
	Timeout:   transfer.DefaultTimeout,
}

func init() {
	if val := os.Getenv("PLC_CAN"); val != "" {
		defaultConfig.Bus = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Bus, "bus", defaultConfig.Bus, "CAN bus: socketcan:<if> or tunnel URL")
	flag.UintVar(&defaultConfig.LocalNode, "node", defaultConfig.LocalNode, "Node ID of the shell")
	flag.UintVar(&defaultConfig.Target, "target", defaultConfig.Target, "Node to talk to, 0 to select later")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Request timeout")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *Config
	Client *remoteio.Client
	Peers  *remoteio.Peers
	Target transfer.NodeID

	selected bool
	runner   *fx.Runner
}

const (
	shellKey         = "$shell"
	unselectedPrompt = "[none] > "
	peersMaxAge      = 5 * time.Second
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&NodesCmd,
		&UseCmd,
		&InfoCmd,
		&RestartCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Peers:  remoteio.NewPeers(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unselectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Attach joins the bus and starts receiving.
func (s *Shell) Attach() error {
	bus, err := node.OpenBus(s.Config.Bus, transfer.NodeID(s.Config.LocalNode))
	if err != nil {
		return err
	}
	caller := remoteio.NewCaller(bus.Transport)
	caller.Timeout = s.Config.Timeout
	if s.Client, err = remoteio.NewClient(caller); err != nil {
		return err
	}
	if err = s.Peers.Listen(bus.Transport); err != nil {
		return err
	}
	s.runner = fx.NewRunner()
	s.runner.Go(bus.Tasks...)
	s.runner.Go(caller)
	return nil
}

// Select sets the node the commands talk to.
func (s *Shell) Select(target transfer.NodeID) {
	s.Target, s.selected = target, true
	s.Shell.SetPrompt(fmt.Sprintf("[node %d] > ", target))
}

// Context returns a context bounded by the request timeout.
func (s *Shell) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.Config.Timeout)
}

// Print prints v as JSON or with the text form.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// MustSelect wraps command func requires a selected node.
func MustSelect(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !ShellFrom(c).selected {
			c.Err(fmt.Errorf("no node selected"))
			return
		}
		fn(c)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if err := s.Attach(); err != nil {
		log.Fatalf("attach %q failed: %v", s.Config.Bus, err)
	}
	defer s.runner.Stop()
	if s.Config.Target != 0 {
		// node 0 can still be selected with the use command
		s.Select(transfer.NodeID(s.Config.Target))
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// NodesCmd lists the nodes heard recently.
	NodesCmd = ishell.Cmd{
		Name:    "nodes",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			peers := s.Peers.List(peersMaxAge)
			if s.OutputJSON {
				if peers == nil {
					peers = []remoteio.Peer{}
				}
				s.Print(c, peers, "")
				return
			}
			if len(peers) == 0 {
				c.Println("No nodes heard")
				return
			}
			for _, p := range peers {
				c.Printf("%3d %-8s %-14s uptime=%ds vssc=%d\n", p.Node, p.Health, p.Mode, p.Uptime, p.VendorStatus)
			}
		},
	}

	// UseCmd selects the node to talk to.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"connect", "c"},
		Help:    "NODE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("NODE required"))
				return
			}
			id, err := strconv.ParseUint(c.Args[0], 10, 8)
			if err != nil || !transfer.NodeID(id).IsValid() {
				c.Err(fmt.Errorf("invalid NODE %q", c.Args[0]))
				return
			}
			ShellFrom(c).Select(transfer.NodeID(id))
		},
	}

	// InfoCmd queries the identity of the selected node.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "",
		Func: MustSelect(func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			info, err := s.Client.GetInfo(ctx, s.Target)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, info, fmt.Sprintf("%s protocol=%s software=%s uid=%x",
				info.Name, info.Protocol, info.Software, info.UniqueID))
		}),
	}

	// RestartCmd restarts the selected node.
	RestartCmd = ishell.Cmd{
		Name:    "restart",
		Aliases: []string{},
		Help:    "",
		Func: MustSelect(func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			if err := s.Client.Restart(ctx, s.Target); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).Run(flag.Args()...)
}

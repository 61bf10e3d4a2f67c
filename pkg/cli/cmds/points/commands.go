package points

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/plc.go/pkg/cli/sh"
	"github.com/robotalks/plc.go/pkg/ioblock"
)

const (
	watchDefaultTimes = 10
	watchInterval     = 500 * time.Millisecond
)

var (
	// GetCmd reads input points.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "KIND(DI|AI) INDEX [COUNT]",
		Func: sh.MustSelect(func(c *ishell.Context) {
			kind, index, count, err := parseRange(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			values, err := s.Client.GetInputs(ctx, s.Target, kind, index, count)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, values, formatValues(kind, index, values))
		}),
	}

	// SetCmd writes output points.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "KIND(DO|AO) INDEX VALUE...",
		Func: sh.MustSelect(func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("KIND INDEX VALUE required"))
				return
			}
			kind, index, _, err := parseRange(c.Args[:2])
			if err != nil {
				c.Err(err)
				return
			}
			if kind.IsInput() {
				c.Err(fmt.Errorf("%s is not an output", kind))
				return
			}
			values := make([]uint16, 0, len(c.Args)-2)
			for _, arg := range c.Args[2:] {
				val, err := strconv.ParseUint(arg, 0, 16)
				if err != nil {
					c.Err(fmt.Errorf("Invalid VALUE %q: %v", arg, err))
					return
				}
				values = append(values, uint16(val))
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			if err := s.Client.SetOutputs(ctx, s.Target, kind, index, values); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// WatchCmd polls input points and prints the changes.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "KIND(DI|AI) INDEX [COUNT] [TIMES]",
		Func: sh.MustSelect(func(c *ishell.Context) {
			args := c.Args
			times := watchDefaultTimes
			if len(args) > 3 {
				val, err := strconv.Atoi(args[3])
				if err != nil || val <= 0 {
					c.Err(fmt.Errorf("Invalid TIMES %q", args[3]))
					return
				}
				times, args = val, args[:3]
			}
			kind, index, count, err := parseRange(args)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			var last []uint16
			for i := 0; i < times; i++ {
				if i > 0 {
					time.Sleep(watchInterval)
				}
				ctx, cancel := s.Context()
				values, err := s.Client.GetInputs(ctx, s.Target, kind, index, count)
				cancel()
				if err != nil {
					c.Err(err)
					return
				}
				if last != nil && equal(last, values) {
					continue
				}
				last = values
				s.Print(c, values, formatValues(kind, index, values))
			}
		}),
	}
)

func parseRange(args []string) (kind ioblock.Kind, index, count uint8, err error) {
	if len(args) < 2 {
		err = fmt.Errorf("KIND INDEX required")
		return
	}
	if kind, err = ioblock.ParseKind(args[0]); err != nil {
		return
	}
	val, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		err = fmt.Errorf("Invalid INDEX: %v", err)
		return
	}
	index, count = uint8(val), 1
	if len(args) > 2 {
		if val, err = strconv.ParseUint(args[2], 10, 8); err != nil || val == 0 {
			err = fmt.Errorf("Invalid COUNT %q", args[2])
			return
		}
		count = uint8(val)
	}
	return
}

func formatValues(kind ioblock.Kind, index uint8, values []uint16) string {
	var str string
	for i, val := range values {
		if i > 0 {
			str += " "
		}
		str += fmt.Sprintf("%s%d=%d", kind, int(index)+i, val)
	}
	return str
}

func equal(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func init() {
	sh.AddCmds(
		&GetCmd,
		&SetCmd,
		&WatchCmd,
	)
}

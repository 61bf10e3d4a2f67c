// Package programs holds built-in scan programs for nodes running without a
// compiled program.
package programs

import (
	"fmt"
	"sort"
	"time"

	"github.com/robotalks/plc.go/pkg/plc"
)

// Factory creates a program.
type Factory func() plc.Program

var registry = map[string]Factory{
	"blink":       func() plc.Program { return NewBlink() },
	"dice":        func() plc.Program { return NewDice() },
	"passthrough": func() plc.Program { return NewPassthrough() },
}

// New creates a program by name.
func New(name string) (plc.Program, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown program %q", name)
	}
	return factory(), nil
}

// Names lists the registered programs.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// elapsed reports whether period passed since *last, moving *last to now
// when it did.
func elapsed(last *int64, now plc.Clock, period time.Duration) bool {
	ms := now.Millis()
	if ms-*last < period.Milliseconds() {
		return false
	}
	*last = ms
	return true
}

package programs

import (
	"time"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/plc"
)

// Blink toggles a digital output every Delay.
type Blink struct {
	Delay  time.Duration
	Output int

	led        *plc.Slot
	lastChange int64
}

// NewBlink blinks QX0.0 once a second.
func NewBlink() *Blink {
	return &Blink{Delay: time.Second}
}

// Init implements plc.Program.
func (p *Blink) Init(img *plc.Image) (err error) {
	p.led, err = img.Locate(ioblock.DigitalOutput, p.Output)
	return
}

// TickPeriod implements plc.Program.
func (p *Blink) TickPeriod() time.Duration {
	return p.Delay
}

// Run implements plc.Program.
func (p *Blink) Run(tick uint64, now plc.Clock) {
	if elapsed(&p.lastChange, now, p.Delay) {
		p.led.SetBool(!p.led.Bool())
	}
}

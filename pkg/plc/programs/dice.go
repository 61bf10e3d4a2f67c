package programs

import (
	"time"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/plc"
)

// Dice rolls a single lit output over four outputs until one of the
// switches is on.
type Dice struct {
	Delay time.Duration
	// Outputs are the four digital outputs lit in turn.
	Outputs [4]int
	// Switches are the digital inputs stopping the roll.
	Switches []int

	leds       [4]*plc.Slot
	switches   []*plc.Slot
	current    int
	lastChange int64
}

// NewDice rolls QX0.0-QX0.3 every 50ms, stopped by IX0.0.
func NewDice() *Dice {
	return &Dice{
		Delay:    50 * time.Millisecond,
		Outputs:  [4]int{0, 1, 2, 3},
		Switches: []int{0},
	}
}

// Init implements plc.Program.
func (p *Dice) Init(img *plc.Image) error {
	for i, point := range p.Outputs {
		slot, err := img.Locate(ioblock.DigitalOutput, point)
		if err != nil {
			return err
		}
		p.leds[i] = slot
	}
	p.switches = nil
	for _, point := range p.Switches {
		slot, err := img.Locate(ioblock.DigitalInput, point)
		if err != nil {
			return err
		}
		p.switches = append(p.switches, slot)
	}
	return nil
}

// TickPeriod implements plc.Program.
func (p *Dice) TickPeriod() time.Duration {
	return p.Delay
}

// Run implements plc.Program.
func (p *Dice) Run(tick uint64, now plc.Clock) {
	for _, s := range p.switches {
		if s.Bool() {
			return
		}
	}
	if !elapsed(&p.lastChange, now, p.Delay) {
		return
	}
	p.current = (p.current + 1) % len(p.leds)
	for i, led := range p.leds {
		led.SetBool(i == p.current)
	}
}

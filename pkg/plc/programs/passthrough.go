package programs

import (
	"time"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/plc"
)

// Passthrough copies every input point to the output point with the same
// index, DI to DO and AI to AO.
type Passthrough struct {
	Period time.Duration

	pairs [][2]*plc.Slot
}

// NewPassthrough creates a passthrough program ticking every 10ms.
func NewPassthrough() *Passthrough {
	return &Passthrough{Period: 10 * time.Millisecond}
}

// Init implements plc.Program. Points without a counterpart are ignored.
func (p *Passthrough) Init(img *plc.Image) error {
	p.pairs = nil
	for _, kinds := range [][2]ioblock.Kind{
		{ioblock.DigitalInput, ioblock.DigitalOutput},
		{ioblock.AnalogInput, ioblock.AnalogOutput},
	} {
		for point := 0; ; point++ {
			in, err := img.Locate(kinds[0], point)
			if err != nil {
				break
			}
			out, err := img.Locate(kinds[1], point)
			if err != nil {
				break
			}
			p.pairs = append(p.pairs, [2]*plc.Slot{in, out})
		}
	}
	return nil
}

// TickPeriod implements plc.Program.
func (p *Passthrough) TickPeriod() time.Duration {
	return p.Period
}

// Run implements plc.Program.
func (p *Passthrough) Run(tick uint64, now plc.Clock) {
	for _, pair := range p.pairs {
		pair[1].Value = pair[0].Value
	}
}

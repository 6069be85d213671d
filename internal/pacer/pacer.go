// Package pacer holds a fixed-rate loop to wall-clock time.
package pacer

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Pacer blocks until a step's scheduled wall-clock time. A disabled Pacer
// never blocks, so the loop runs as fast as it can.
type Pacer struct {
	clock   clock.Clock
	enabled bool

	overruns int
}

// New returns a Pacer on clk. A nil clk uses the system clock.
func New(clk clock.Clock, enabled bool) *Pacer {
	if clk == nil {
		clk = clock.New()
	}
	return &Pacer{clock: clk, enabled: enabled}
}

func (p *Pacer) Enabled() bool { return p.enabled }

// Now reads the pacer's clock.
func (p *Pacer) Now() time.Time { return p.clock.Now() }

// Sync waits until start + step*period. When that instant has already passed
// it returns immediately and counts an overrun; it never sleeps to catch up.
func (p *Pacer) Sync(ctx context.Context, step int, start time.Time, period time.Duration) error {
	if !p.enabled {
		return nil
	}

	wait := start.Add(time.Duration(step) * period).Sub(p.clock.Now())
	if wait <= 0 {
		if wait < 0 {
			p.overruns++
		}
		return nil
	}

	t := p.clock.Timer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Overruns is the number of Sync calls that found the loop behind schedule.
func (p *Pacer) Overruns() int { return p.overruns }

// Period converts a control rate in Hz to a step period.
func Period(rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Second / time.Duration(rate)
}

// This file is part of Breadbox.
//
// Breadbox is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Breadbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Breadbox.  If not, see <https://www.gnu.org/licenses/>.

package timer_test

import (
	"testing"

	"github.com/hexbench/breadbox/hardware/interrupts"
	"github.com/hexbench/breadbox/hardware/memory"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/hardware/timer"
	"github.com/hexbench/breadbox/logger"
	"github.com/hexbench/breadbox/test"
)

type recordRaiser struct {
	raised []interrupts.VectorID
}

func (r *recordRaiser) Raise(v interrupts.VectorID) {
	r.raised = append(r.raised, v)
}

func newTimer0(t *testing.T) (*timer.Timer, *memory.RegisterFile, *recordRaiser) {
	t.Helper()
	mem := memory.NewRegisterFile()
	irq := &recordRaiser{}
	tmr := timer.NewTimer(logger.Allow, mem, irq, timer.Timer0)
	return tmr, mem, irq
}

func newTimer1(t *testing.T) (*timer.Timer, *memory.RegisterFile, *recordRaiser) {
	t.Helper()
	mem := memory.NewRegisterFile()
	irq := &recordRaiser{}
	tmr := timer.NewTimer(logger.Allow, mem, irq, timer.Timer1)
	return tmr, mem, irq
}

// the sum of counter increments must equal floor(total/prescaler) no matter
// how the cycles are chopped up between Tick() calls.
func TestFractionalCarry(t *testing.T) {
	tmr, mem, _ := newTimer0(t)

	// normal mode, prescaler 64
	mem.ChipWrite(registers.TCCR0B, 0x03)

	// feed one cycle at a time. much smaller than the divisor
	total := 0
	for i := 0; i < 1000; i++ {
		tmr.Tick(1)
		total++
	}
	test.ExpectEquality(t, tmr.Counter(), uint32(total/64))

	// feed awkward chunk sizes and compare against the same rule
	tmr.Reset()
	total = 0
	for _, c := range []int{3, 7, 63, 64, 65, 1, 130, 500} {
		tmr.Tick(c)
		total += c
	}
	test.ExpectEquality(t, tmr.Counter(), uint32(total/64))
}

// feeding zero cycles must never change the counter, the overflow flag or
// the register file representation.
func TestZeroCycles(t *testing.T) {
	tmr, mem, _ := newTimer0(t)

	mem.ChipWrite(registers.TCCR0B, 0x01)
	tmr.Tick(300)
	counter := tmr.Counter()
	overflowed := tmr.Overflowed()

	tmr.Tick(0)
	test.ExpectEquality(t, tmr.Counter(), counter)
	test.ExpectEquality(t, tmr.Overflowed(), overflowed)
	test.ExpectEquality(t, mem.Read8(registers.TCNT0), uint8(counter))
}

func TestOverflow(t *testing.T) {
	tmr, mem, irq := newTimer0(t)

	// normal mode, prescaler 1. overflow interrupt unmasked
	mem.ChipWrite(registers.TCCR0B, 0x01)
	mem.ChipWrite(registers.TIMSK0, registers.TOV)

	tmr.Tick(255)
	test.ExpectEquality(t, tmr.Counter(), uint32(255))
	test.ExpectEquality(t, tmr.Overflowed(), false)
	test.ExpectEquality(t, len(irq.raised), 0)

	tmr.Tick(1)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))
	test.ExpectEquality(t, tmr.Overflowed(), true)
	test.ExpectEquality(t, mem.Read8(registers.TIFR0)&registers.TOV, uint8(registers.TOV))
	test.DemandEquality(t, len(irq.raised), 1)
	test.ExpectEquality(t, irq.raised[0], interrupts.Timer0Overflow)
}

// overflow is detected at most once per tick batch, even when the batch
// wraps the counter several times.
func TestOverflowOncePerBatch(t *testing.T) {
	tmr, mem, irq := newTimer0(t)

	mem.ChipWrite(registers.TCCR0B, 0x01)
	mem.ChipWrite(registers.TIMSK0, registers.TOV)

	tmr.Tick(256 * 3)
	test.ExpectEquality(t, tmr.Overflowed(), true)
	test.ExpectEquality(t, len(irq.raised), 1)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))
}

func TestCompareMatchCTC(t *testing.T) {
	tmr, mem, irq := newTimer0(t)

	// CTC mode, prescaler 1, compare at 100
	mem.ChipWrite(registers.TCCR0A, 0x02)
	mem.ChipWrite(registers.TCCR0B, 0x01)
	mem.ChipWrite(registers.OCR0A, 100)
	mem.ChipWrite(registers.TIMSK0, registers.OCFA)

	tmr.Tick(99)
	test.ExpectEquality(t, len(irq.raised), 0)

	tmr.Tick(1)
	test.DemandEquality(t, len(irq.raised), 1)
	test.ExpectEquality(t, irq.raised[0], interrupts.Timer0CompareA)

	// the counter wraps at the compare value in CTC mode
	tmr.Tick(1)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))
}

func TestPrescalerOff(t *testing.T) {
	tmr, mem, _ := newTimer0(t)

	// clock select of zero stops the timer
	mem.ChipWrite(registers.TCCR0B, 0x00)
	tmr.Tick(10000)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))
}

// external clock selections and reserved waveform modes freeze the counter
// rather than erroring.
func TestDegradedModes(t *testing.T) {
	tmr, mem, _ := newTimer0(t)

	// external clock selection
	mem.ChipWrite(registers.TCCR0B, 0x06)
	tmr.Tick(1000)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))

	// reserved waveform mode (WGM = 0b101 on the 8-bit unit)
	mem.ChipWrite(registers.TCCR0A, 0x01)
	mem.ChipWrite(registers.TCCR0B, 0x08|0x01)
	tmr.Tick(1000)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))

	// back to a supported mode and the counter thaws
	mem.ChipWrite(registers.TCCR0A, 0x00)
	mem.ChipWrite(registers.TCCR0B, 0x01)
	tmr.Tick(10)
	test.ExpectEquality(t, tmr.Counter(), uint32(10))
}

func TestSixteenBitFastPWM(t *testing.T) {
	tmr, mem, irq := newTimer1(t)

	// fast PWM with ICR1 as top, prescaler 8
	mem.ChipWrite(registers.TCCR1A, 0x02)
	mem.ChipWrite(registers.TCCR1B, 0x18|0x02)
	mem.ChipWrite16(registers.ICR1L, registers.ICR1H, 39999)
	mem.ChipWrite16(registers.OCR1AL, registers.OCR1AH, 3000)
	mem.ChipWrite(registers.TIMSK1, registers.TOV|registers.OCFA)

	// one full PWM frame is 40000 timer ticks = 320000 cpu cycles
	tmr.Tick(3000 * 8)
	test.DemandEquality(t, len(irq.raised), 1)
	test.ExpectEquality(t, irq.raised[0], interrupts.Timer1CompareA)

	tmr.Tick(37000 * 8)
	test.DemandEquality(t, len(irq.raised), 2)
	test.ExpectEquality(t, irq.raised[1], interrupts.Timer1Overflow)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))

	// counter value is written back for firmware to poll
	tmr.Tick(100 * 8)
	test.ExpectEquality(t, mem.Read8(registers.TCNT1L), uint8(100))
}

// a CPU write to the counter register is picked up by the timer.
func TestCounterWrite(t *testing.T) {
	tmr, mem, _ := newTimer0(t)

	mem.ChipWrite(registers.TCCR0B, 0x01)
	tmr.Tick(10)
	test.ExpectEquality(t, tmr.Counter(), uint32(10))

	mem.Write8(registers.TCNT0, 200)
	test.ExpectEquality(t, tmr.ServiceWrite(registers.TCNT0), true)
	test.ExpectEquality(t, tmr.Counter(), uint32(200))

	// writes to other registers are not serviced
	test.ExpectEquality(t, tmr.ServiceWrite(registers.PORTB), false)
}

func TestPhaseCorrectDirection(t *testing.T) {
	tmr, mem, irq := newTimer0(t)

	// phase-correct mode, prescaler 1
	mem.ChipWrite(registers.TCCR0A, 0x01)
	mem.ChipWrite(registers.TCCR0B, 0x01)
	mem.ChipWrite(registers.TIMSK0, registers.TOV)

	// up to top
	tmr.Tick(255)
	test.ExpectEquality(t, tmr.Counter(), uint32(255))

	// and back down. the overflow flag is raised at the bottom
	tmr.Tick(255)
	test.ExpectEquality(t, tmr.Counter(), uint32(0))
	test.ExpectEquality(t, tmr.Overflowed(), true)
	test.ExpectEquality(t, len(irq.raised), 1)
}

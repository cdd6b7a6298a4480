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

package replay_test

import (
	"testing"

	"github.com/hexbench/breadbox/hardware/cpu/replay"
	"github.com/hexbench/breadbox/hardware/memory"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/test"
)

func newCore(t *testing.T, prog []replay.Op) (*replay.Core, *memory.RegisterFile) {
	t.Helper()
	mem := memory.NewRegisterFile()
	cor, err := replay.NewCore(mem, prog)
	if err != nil {
		t.Fatal(err)
	}
	return cor, mem
}

func TestWriteAndHalt(t *testing.T) {
	cor, mem := newCore(t, []replay.Op{
		replay.Write(registers.PORTB, 0x01),
		replay.Write(registers.PORTD, 0x02),
		replay.Halt(),
	})

	cycles, err := cor.Step()
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cycles, 2)
	test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0x01))

	cor.Step()
	test.ExpectEquality(t, mem.Read8(registers.PORTD), uint8(0x02))
	test.ExpectEquality(t, cor.Halted(), false)

	cor.Step()
	test.ExpectEquality(t, cor.Halted(), true)

	// a halted core idles. the program counter holds still
	pc := cor.PC()
	cor.Step()
	test.ExpectEquality(t, cor.PC(), pc)
}

// a waiting Delay op cycles the program counter through a small set of
// addresses, exactly like a firmware busy-wait loop.
func TestDelayLoopsPC(t *testing.T) {
	cor, _ := newCore(t, []replay.Op{
		replay.Delay(1000),
		replay.Halt(),
	})

	seen := make(map[uint16]bool)
	for i := 0; i < 100; i++ {
		cor.Step()
		seen[cor.PC()] = true
	}
	test.ExpectEquality(t, len(seen), 3)
}

func TestDelayBudget(t *testing.T) {
	cor, mem := newCore(t, []replay.Op{
		replay.Delay(10),
		replay.Write(registers.PORTB, 0xff),
	})

	for i := 0; i < 10; i++ {
		test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0))
		cor.Step()
	}

	// the delay is spent. the next step runs the write
	cor.Step()
	test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0xff))
}

// fast-forwarded cycles count against a pending delay budget.
func TestAdvanceCyclesConsumesDelay(t *testing.T) {
	cor, mem := newCore(t, []replay.Op{
		replay.Delay(100000),
		replay.Write(registers.PORTB, 0xff),
	})

	// enter the delay
	cor.Step()

	cor.AdvanceCycles(100000)
	cor.Step()
	test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0xff))
}

func TestJump(t *testing.T) {
	cor, mem := newCore(t, []replay.Op{
		replay.Write(registers.PORTB, 0x01),
		replay.Jump(0),
	})

	// the program loops forever, toggling nothing but never halting
	for i := 0; i < 50; i++ {
		_, err := cor.Step()
		test.ExpectSuccess(t, err)
	}
	test.ExpectEquality(t, cor.Halted(), false)
	test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0x01))
}

func TestJumpOutOfRange(t *testing.T) {
	mem := memory.NewRegisterFile()
	_, err := replay.NewCore(mem, []replay.Op{replay.Jump(5)})
	test.ExpectFailure(t, err)
}

// running off the end of the program halts the core.
func TestRunOffEnd(t *testing.T) {
	cor, _ := newCore(t, []replay.Op{
		replay.Write(registers.PORTB, 0x01),
	})

	cor.Step()
	cor.Step()
	test.ExpectEquality(t, cor.Halted(), true)
}

func TestInterruptAndReturn(t *testing.T) {
	cor, mem := newCore(t, []replay.Op{
		replay.Delay(1000),
		replay.Write(registers.PORTB, 0xff),
	})

	// enter the delay, then take an interrupt
	cor.Step()
	pc := cor.PC()

	returned := false
	cor.OnInterruptReturn(func() { returned = true })
	cor.Interrupt(0x002c)
	test.ExpectEquality(t, cor.PC(), uint16(0x002c))

	// the handler consumes a fixed number of steps and then returns to the
	// interrupted op
	steps := 0
	for cor.PC() == 0x002c {
		cor.Step()
		steps++
		if steps > 100 {
			t.Fatal("handler never returned")
		}
	}
	test.ExpectEquality(t, returned, true)

	// back in the busy-wait loop at one of its addresses
	if cor.PC() < pc-4 || cor.PC() > pc+4 {
		t.Fatalf("did not resume the delay loop: pc %04x", cor.PC())
	}
	test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0))
}

func TestDelayMillis(t *testing.T) {
	op := replay.DelayMillis(5, 16000)
	test.ExpectEquality(t, op.Cycles, 80000)
}

func TestReset(t *testing.T) {
	cor, mem := newCore(t, []replay.Op{
		replay.Write(registers.PORTB, 0x01),
		replay.Halt(),
	})

	cor.Step()
	cor.Step()
	test.ExpectEquality(t, cor.Halted(), true)

	cor.Reset()
	mem.ChipWrite(registers.PORTB, 0x00)
	test.ExpectEquality(t, cor.Halted(), false)
	test.ExpectEquality(t, cor.TotalCycles(), uint64(0))

	cor.Step()
	test.ExpectEquality(t, mem.Read8(registers.PORTB), uint8(0x01))
}

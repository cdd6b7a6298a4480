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

// Package replay implements a deterministic CPU core that executes a fixed
// program of register operations. It stands in for a real instruction-
// decoding core in tests, scripted scenarios, the command line demo and
// performance measurement.
//
// A Delay op behaves like a firmware busy-wait loop: the program counter
// cycles through a small set of addresses until the delay's cycle budget is
// consumed, which makes the replay core a faithful driver for the
// fast-forward heuristic.
package replay

import (
	"github.com/hexbench/breadbox/curated"
	"github.com/hexbench/breadbox/hardware/memory"
)

// the synthetic address of the first program op. comfortably past the
// default firmware-region boundary of the loop detector.
const programOrigin = 0x0200

// each op occupies this many synthetic address slots.
const opStride = 8

// number of synthetic cycles an interrupt handler consumes before the core
// signals return-from-interrupt.
const handlerCycles = 8

// OpKind enumerates the operations a replay program is built from.
type OpKind int

// List of valid OpKind values.
const (
	// write Value to Address. 2 cycles
	OpWrite OpKind = iota

	// busy-wait until Cycles have been consumed. the program counter loops
	// over three addresses while waiting
	OpDelay

	// continue execution at op Index. 2 cycles
	OpJump

	// stop executing. the program counter holds still
	OpHalt
)

// Op is a single operation in a replay program.
type Op struct {
	Kind    OpKind
	Address uint16
	Value   uint8
	Cycles  int
	Index   int
}

// Write builds an op that writes value to a register address.
func Write(address uint16, value uint8) Op {
	return Op{Kind: OpWrite, Address: address, Value: value}
}

// Delay builds an op that busy-waits for the given number of cycles.
func Delay(cycles int) Op {
	return Op{Kind: OpDelay, Cycles: cycles}
}

// DelayMillis builds an op that busy-waits for the given number of
// milliseconds at the given clock speed.
func DelayMillis(ms int, cyclesPerMilli int) Op {
	return Op{Kind: OpDelay, Cycles: ms * cyclesPerMilli}
}

// Jump builds an op that continues execution at the op with the given
// index.
func Jump(index int) Op {
	return Op{Kind: OpJump, Index: index}
}

// Halt builds an op that stops the program.
func Halt() Op {
	return Op{Kind: OpHalt}
}

// Core is a cpu.Core implementation that replays a fixed program.
type Core struct {
	mem  *memory.RegisterFile
	prog []Op

	// index of the op being executed
	op int

	cycles uint64
	halted bool

	// remaining budget and loop phase of the current Delay op
	delayRemaining int
	delayPhase     int

	// interrupt handling state
	inHandler        bool
	handlerAddress   uint16
	handlerRemaining int
	resumeOp         int
	reti             func()
}

// NewCore is the preferred method of initialisation for the replay Core
// type.
func NewCore(mem *memory.RegisterFile, prog []Op) (*Core, error) {
	for i, op := range prog {
		if op.Kind == OpJump && (op.Index < 0 || op.Index >= len(prog)) {
			return nil, curated.Errorf("replay: op %d: jump target %d out of range", i, op.Index)
		}
	}
	return &Core{
		mem:  mem,
		prog: prog,
	}, nil
}

// Halted returns true once the program has reached a Halt op.
func (cor *Core) Halted() bool {
	return cor.halted
}

// PC implements the cpu.Core interface. Addresses are synthetic but stable:
// each op owns a block of addresses and a waiting Delay op cycles through
// three of them, mimicking a real busy-wait loop.
func (cor *Core) PC() uint16 {
	if cor.inHandler {
		return cor.handlerAddress
	}
	base := uint16(programOrigin + cor.op*opStride)
	if cor.delayRemaining > 0 {
		return base + uint16(cor.delayPhase)*2
	}
	return base
}

// TotalCycles implements the cpu.Core interface.
func (cor *Core) TotalCycles() uint64 {
	return cor.cycles
}

// AdvanceCycles implements the cpu.Core interface. If the core is currently
// inside a Delay op the advanced cycles are counted against the delay
// budget, which is exactly what fast-forwarding a busy-wait loop means.
func (cor *Core) AdvanceCycles(cycles int) {
	if cycles <= 0 {
		return
	}
	cor.cycles += uint64(cycles)

	if cor.inHandler || cor.halted {
		return
	}
	if cor.delayRemaining > 0 {
		cor.delayRemaining -= cycles
		if cor.delayRemaining <= 0 {
			cor.delayRemaining = 0
			cor.op++
		}
	}
}

// Step implements the cpu.Core interface.
func (cor *Core) Step() (int, error) {
	if cor.halted {
		// hold still. one idle cycle
		cor.cycles++
		return 1, nil
	}

	if cor.inHandler {
		// a handler is a fixed number of synthetic cycles followed by a
		// return-from-interrupt
		cor.cycles++
		cor.handlerRemaining--
		if cor.handlerRemaining <= 0 {
			cor.inHandler = false
			cor.op = cor.resumeOp
			if cor.reti != nil {
				cor.reti()
			}
		}
		return 1, nil
	}

	if cor.op >= len(cor.prog) {
		cor.halted = true
		cor.cycles++
		return 1, nil
	}

	op := cor.prog[cor.op]
	switch op.Kind {
	case OpWrite:
		cor.mem.Write8(op.Address, op.Value)
		cor.op++
		cor.cycles += 2
		return 2, nil

	case OpDelay:
		if op.Cycles <= 0 {
			cor.op++
			cor.cycles++
			return 1, nil
		}
		if cor.delayRemaining == 0 {
			cor.delayRemaining = op.Cycles
			cor.delayPhase = 0
		}
		cor.delayPhase = (cor.delayPhase + 1) % 3
		cor.delayRemaining--
		cor.cycles++
		if cor.delayRemaining == 0 {
			cor.op++
		}
		return 1, nil

	case OpJump:
		cor.op = op.Index
		cor.cycles += 2
		return 2, nil

	case OpHalt:
		cor.halted = true
		cor.cycles++
		return 1, nil
	}

	return 0, curated.Errorf("replay: op %d: unknown op kind %d", cor.op, op.Kind)
}

// Interrupt implements the cpu.Core interface.
func (cor *Core) Interrupt(handlerAddress uint16) {
	if cor.halted {
		return
	}
	cor.inHandler = true
	cor.handlerAddress = handlerAddress
	cor.handlerRemaining = handlerCycles
	cor.resumeOp = cor.op
}

// OnInterruptReturn implements the cpu.Core interface.
func (cor *Core) OnInterruptReturn(f func()) {
	cor.reti = f
}

// Reset implements the cpu.Core interface.
func (cor *Core) Reset() {
	cor.op = 0
	cor.cycles = 0
	cor.halted = false
	cor.delayRemaining = 0
	cor.delayPhase = 0
	cor.inHandler = false
	cor.handlerRemaining = 0
}

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

// Package cpu defines the contract between the board and the external
// instruction-decoding CPU core. Breadbox does not implement an instruction
// set; it consumes a core as a black box that executes one instruction per
// call against the shared register file and keeps a monotonic cycle
// counter.
//
// The replay sub-package provides a deterministic core for tests, scripted
// scenarios and performance measurement.
package cpu

// Core is the contract breadbox requires from a CPU core implementation.
type Core interface {
	// Step executes a single instruction and returns the number of cycles
	// it consumed.
	Step() (int, error)

	// PC returns the address of the next instruction to be executed.
	PC() uint16

	// TotalCycles returns the monotonically increasing cycle counter.
	TotalCycles() uint64

	// AdvanceCycles adds cycles to the counter without executing
	// instructions. Used by the fast-forward mechanism to collapse
	// busy-wait loops.
	AdvanceCycles(cycles int)

	// Interrupt makes the core save its state and jump to the handler
	// address. Called by the interrupt controller on dispatch.
	Interrupt(handlerAddress uint16)

	// OnInterruptReturn registers a function to be called when the core
	// executes a return-from-interrupt.
	OnInterruptReturn(f func())

	// Reset returns the core to its power-on state.
	Reset()
}

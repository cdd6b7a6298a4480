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

package hardware

import (
	"fmt"

	"github.com/hexbench/breadbox/hardware/clocks"
	"github.com/hexbench/breadbox/hardware/cpu"
	"github.com/hexbench/breadbox/hardware/interrupts"
	"github.com/hexbench/breadbox/hardware/loopdetect"
	"github.com/hexbench/breadbox/hardware/memory"
	"github.com/hexbench/breadbox/hardware/observer"
	"github.com/hexbench/breadbox/hardware/timer"
	"github.com/hexbench/breadbox/peripherals"
)

// Board is the main container for the emulated peripheral hardware. It owns
// the register file, the time source, both timer units, the interrupt
// controller, the loop detector, the observer bridge and the device
// registry. The CPU core is attached separately; it is an external
// collaborator, not part of the board.
//
// Board instances are explicit and self-contained. Nothing in this package
// is a singleton; any number of boards can be stepped independently.
type Board struct {
	Prefs *Preferences

	Mem      *memory.RegisterFile
	Clk      *clocks.TimeSource
	Timer0   *timer.Timer
	Timer1   *timer.Timer
	INT      *interrupts.Controller
	Detector *loopdetect.Detector
	Bridge   *observer.Bridge
	Devices  *peripherals.Registry

	core cpu.Core

	// whether components of this board may write to the central log
	quiet bool

	lastMotionMillis int64
}

// NewBoard is the preferred method of initialisation for the Board type. A
// nil prefs argument selects the default tuning.
func NewBoard(prefs *Preferences) *Board {
	if prefs == nil {
		prefs = NewPreferences()
	}

	brd := &Board{Prefs: prefs}

	brd.Mem = memory.NewRegisterFile()
	brd.Clk = &clocks.TimeSource{}
	brd.INT = interrupts.NewController(brd, brd.Mem)
	brd.Timer0 = timer.NewTimer(brd, brd.Mem, brd.INT, timer.Timer0)
	brd.Timer1 = timer.NewTimer(brd, brd.Mem, brd.INT, timer.Timer1)
	brd.Detector = loopdetect.NewDetector(prefs.LoopDetect)
	brd.Bridge = observer.NewBridge(brd.Mem, brd.Clk)
	brd.Devices = peripherals.NewRegistry()

	// the loop detector must never run with the relaxed threshold while an
	// edge-sensitive decoder is plugged
	brd.Devices.SetSensitivityListener(brd.Detector.SetStrict)

	return brd
}

func (brd *Board) String() string {
	return fmt.Sprintf("%s\n%s\n%s\n%s", brd.Timer0, brd.Timer1, brd.INT, brd.Detector)
}

// AllowLogging implements the logger.Permission interface.
func (brd *Board) AllowLogging() bool {
	return !brd.quiet
}

// SetQuiet stops the board's components writing to the central log. Useful
// when a board is stepped purely for measurement.
func (brd *Board) SetQuiet(quiet bool) {
	brd.quiet = quiet
}

// AttachCore connects the external CPU core to the board, wiring the
// interrupt controller in both directions.
func (brd *Board) AttachCore(core cpu.Core) {
	brd.core = core
	brd.INT.Plug(core)
	core.OnInterruptReturn(brd.INT.AcknowledgeReturn)
}

// Core returns the attached CPU core, or nil.
func (brd *Board) Core() cpu.Core {
	return brd.core
}

// Peek reads a byte from the register file without side effects.
func (brd *Board) Peek(address uint16) uint8 {
	return brd.Mem.Read8(address)
}

// Poke writes a byte to the register file as if the CPU had written it and
// services the write immediately. Intended for UI interactions and scripted
// scenarios that happen between steps.
func (brd *Board) Poke(address uint16, value uint8) {
	brd.Mem.Write8(address, value)
	brd.service()
}

// StepMotion drives the time-stepped physics of every plugged actuator.
// Called on the animation cadence by the consuming UI, or by Run() on its
// own simulated-time cadence when running headless.
func (brd *Board) StepMotion() {
	brd.Devices.StepMotion()
}

// Reset returns the board and every attached component to its power-on
// state. Internal state is only ever reset explicitly, never implicitly.
func (brd *Board) Reset() {
	brd.Mem.Reset()
	brd.Clk.Reset()
	if brd.core != nil {
		brd.core.Reset()
	}
	brd.Timer0.Reset()
	brd.Timer1.Reset()
	brd.INT.Reset()
	brd.Detector.Reset()
	brd.Bridge.Reset()
	brd.Devices.Reset()
	brd.lastMotionMillis = 0
}

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
	"github.com/hexbench/breadbox/curated"
)

// Step executes one CPU instruction (or one fast-forward batch) and then
// drives the peripheral clock layer, the observer bridge and the interrupt
// controller. Nothing in a step blocks or suspends.
//
// The order of operation within a step:
//
//  1. the instruction address is fed to the loop detector
//  2. the core executes one instruction; if the detector is engaged the
//     cycle counter is additionally advanced by a whole batch
//  3. both timers tick with the full cycle count of the step, so
//     timer-driven outputs stay consistent during fast-forward jumps
//  4. the register write journal is replayed: the timers service counter
//     writes, then the observer bridge diffs and emits events in write
//     order
//  5. the interrupt controller dispatches at most one pending vector
func (brd *Board) Step() error {
	if brd.core == nil {
		return curated.Errorf("board: no CPU core attached")
	}

	brd.Detector.Observe(brd.core.PC())

	cycles, err := brd.core.Step()
	if err != nil {
		return curated.Errorf("board: %v", err)
	}

	if brd.Detector.Engaged() {
		batch := brd.Detector.BatchCycles()
		brd.core.AdvanceCycles(batch)
		cycles += batch
	}

	brd.Clk.Tick(cycles)
	brd.Timer0.Tick(cycles)
	brd.Timer1.Tick(cycles)

	brd.service()

	brd.INT.DispatchPending()

	return nil
}

// service replays the register write journal through the timers and the
// observer bridge.
func (brd *Board) service() {
	brd.Mem.DrainJournal(func(address uint16) {
		if !brd.Timer0.ServiceWrite(address) {
			brd.Timer1.ServiceWrite(address)
		}
		brd.Bridge.ServiceWrite(address)
	})
	brd.Bridge.Commit()
}

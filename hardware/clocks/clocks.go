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

// Package clocks defines the speed of the main clock of the emulated board
// and provides the TimeSource type, the single authority for simulated time.
//
// Every peripheral and every physics calculation in breadbox reads time
// through a TimeSource and never from the wall clock. Pulse decoding and
// servo motion run on different cadences (the CPU step loop and the
// animation loop respectively) but both cadences derive their idea of "now"
// from the same accumulator, so they can never drift apart.
package clocks

// ClockMHz is the crystal frequency of the emulated board in MHz.
const ClockMHz = 16

// CyclesPerMilli is the number of CPU cycles in one millisecond of simulated
// time.
const CyclesPerMilli = ClockMHz * 1000

// TimeSource is the authoritative simulation-time accumulator. The zero
// value is ready to use.
type TimeSource struct {
	cycles uint64
}

// Tick advances simulated time by the given number of CPU cycles. Negative
// values are ignored: simulated time is monotonic.
func (ts *TimeSource) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	ts.cycles += uint64(cycles)
}

// Cycles returns the total number of CPU cycles accumulated.
func (ts *TimeSource) Cycles() uint64 {
	return ts.cycles
}

// NowMicros returns the current simulated time in microseconds.
func (ts *TimeSource) NowMicros() int64 {
	return int64(ts.cycles / ClockMHz)
}

// NowMillis returns the current simulated time in milliseconds.
func (ts *TimeSource) NowMillis() int64 {
	return int64(ts.cycles / (ClockMHz * 1000))
}

// Reset the accumulator to zero.
func (ts *TimeSource) Reset() {
	ts.cycles = 0
}

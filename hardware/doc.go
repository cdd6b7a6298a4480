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

// Package hardware coordinates the emulated peripheral hardware of the
// board: the register file, the two timer units, the interrupt controller,
// the wait-loop detector, the observer bridge and the plugged devices.
//
// The emulation is single threaded and cooperative. One Step() call
// executes one instruction on the attached CPU core (or one fast-forward
// batch) and then drives every peripheral before returning. There is no
// locking because there is no concurrency; the only state crossing the
// boundary between the CPU cadence and the animation cadence is the servo
// target angle, and both cadences read time from the same TimeSource.
package hardware

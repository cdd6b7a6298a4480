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

package performance

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hexbench/breadbox/hardware"
	"github.com/hexbench/breadbox/hardware/clocks"
)

// sentinal error returned by the Run() loop.
var timedOut = errors.New("performance timed out")

// Check the performance of the emulation using the supplied board. The board
// must have a CPU core attached.
//
// Emulation will run for the specified duration and will create a cpu
// profile, a memory profile, a trace (or a combination of those) as defined
// by the Profile argument.
func Check(output io.Writer, profile Profile, brd *hardware.Board, duration string) error {
	dur, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("performance: %w", err)
	}

	// components would otherwise flood the central log during a measurement
	// run
	brd.SetQuiet(true)
	defer brd.SetQuiet(false)

	startCycles := brd.Clk.Cycles()
	steps := 0

	runner := func() error {
		// setup trigger that expires when duration has elapsed
		timerChan := make(chan bool)
		go func() {
			time.AfterFunc(dur, func() {
				timerChan <- true
			})
		}()

		// only check the timerChan every ContinueBrake steps. checking a
		// channel on every step is measurably expensive
		brake := 0

		return brd.Run(func() (bool, error) {
			steps++
			brake++
			if brake >= hardware.ContinueBrake {
				brake = 0
				select {
				case <-timerChan:
					return false, timedOut
				default:
				}
			}
			return true, nil
		})
	}

	// launch runner directly or through the profiler, depending on supplied
	// arguments
	err = RunProfiler(profile, "performance", runner)
	if err != nil && !errors.Is(err, timedOut) {
		return fmt.Errorf("performance: %w", err)
	}

	// calculate performance. the interesting number is how much faster than
	// the real 16MHz part the emulation runs
	elapsedCycles := brd.Clk.Cycles() - startCycles
	simSeconds := float64(elapsedCycles) / float64(clocks.ClockMHz*1e6)
	ratio := 100 * simSeconds / dur.Seconds()

	output.Write([]byte(fmt.Sprintf("%d steps (%.2fM cycles) in %.2f seconds. %.1f%% of real speed\n",
		steps, float64(elapsedCycles)/1e6, dur.Seconds(), ratio)))

	return nil
}

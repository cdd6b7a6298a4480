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

// checking the continue condition on every step can be expensive. the
// ContinueBrake is a standard filter value for continueCheck
// implementations that want to run their real check less often.
const ContinueBrake = 100

// Run steps the board as quickly as possible until continueCheck returns
// false or an error. A nil continueCheck runs forever (or until the step
// loop itself errors).
//
// While running headless, Run drives the actuator motion cadence from
// simulated time, at the interval set in the preferences. A consuming UI
// that calls Step() directly is expected to call StepMotion() on its own
// animation cadence instead.
func (brd *Board) Run(continueCheck func() (bool, error)) error {
	if continueCheck == nil {
		continueCheck = func() (bool, error) { return true, nil }
	}

	for {
		if err := brd.Step(); err != nil {
			return err
		}

		if now := brd.Clk.NowMillis(); now-brd.lastMotionMillis >= brd.Prefs.MotionIntervalMillis {
			brd.lastMotionMillis = now
			brd.StepMotion()
		}

		cont, err := continueCheck()
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// RunForMillis runs the board for the given amount of simulated time.
func (brd *Board) RunForMillis(ms int64) error {
	end := brd.Clk.NowMillis() + ms
	return brd.Run(func() (bool, error) {
		return brd.Clk.NowMillis() < end, nil
	})
}

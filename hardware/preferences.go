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
	"github.com/hexbench/breadbox/hardware/loopdetect"
)

// Preferences gathers the tunable values of a board. The loop-detector
// values in particular are empirical tuning parameters rather than
// derivable constants, which is why they are configuration and not code.
type Preferences struct {
	LoopDetect loopdetect.Parameters

	// simulated-time interval between actuator motion updates during Run()
	MotionIntervalMillis int64
}

// NewPreferences returns the documented default tuning.
func NewPreferences() *Preferences {
	return &Preferences{
		LoopDetect:           loopdetect.DefaultParameters(),
		MotionIntervalMillis: 16,
	}
}

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

package loopdetect_test

import (
	"testing"

	"github.com/hexbench/breadbox/hardware/loopdetect"
	"github.com/hexbench/breadbox/test"
)

func fillLoop(det *loopdetect.Detector, addresses []uint16, n int) {
	for i := 0; i < n; i++ {
		det.Observe(addresses[i%len(addresses)])
	}
}

func TestEngageAndDisengage(t *testing.T) {
	det := loopdetect.NewDetector(loopdetect.DefaultParameters())

	// a window full of three distinct addresses is a wait loop
	fillLoop(det, []uint16{0x0200, 0x0202, 0x0204}, 100)
	test.ExpectEquality(t, det.Distinct(), 3)
	test.ExpectEquality(t, det.Engaged(), true)

	// varied execution resumes: ten or more distinct addresses clear the
	// state
	varied := make([]uint16, 10)
	for i := range varied {
		varied[i] = uint16(0x0300 + i*2)
	}
	fillLoop(det, varied, 100)
	test.ExpectEquality(t, det.Engaged(), false)
}

// a partial window must never engage, whatever its diversity.
func TestPartialWindow(t *testing.T) {
	det := loopdetect.NewDetector(loopdetect.DefaultParameters())

	fillLoop(det, []uint16{0x0200, 0x0202}, 99)
	test.ExpectEquality(t, det.Engaged(), false)

	det.Observe(0x0200)
	test.ExpectEquality(t, det.Engaged(), true)
}

// addresses below the firmware origin are bootstrap code and are never fed
// to the window.
func TestFirmwareOrigin(t *testing.T) {
	det := loopdetect.NewDetector(loopdetect.DefaultParameters())

	fillLoop(det, []uint16{0x0010, 0x0012}, 500)
	test.ExpectEquality(t, det.Distinct(), 0)
	test.ExpectEquality(t, det.Engaged(), false)
}

// the strict threshold is near-disabled: a three-address loop engages the
// relaxed detector but not the strict one.
func TestStrictThreshold(t *testing.T) {
	det := loopdetect.NewDetector(loopdetect.DefaultParameters())
	det.SetStrict(true)

	fillLoop(det, []uint16{0x0200, 0x0202, 0x0204}, 100)
	test.ExpectEquality(t, det.Engaged(), false)

	// a two-address spin still engages
	fillLoop(det, []uint16{0x0200, 0x0202}, 100)
	test.ExpectEquality(t, det.Engaged(), true)
}

// switching to strict while engaged drops out of fast-forward if the
// current window would not have engaged under the strict threshold.
func TestStrictSwitchDisengages(t *testing.T) {
	det := loopdetect.NewDetector(loopdetect.DefaultParameters())

	fillLoop(det, []uint16{0x0200, 0x0202, 0x0204}, 100)
	test.ExpectEquality(t, det.Engaged(), true)

	det.SetStrict(true)
	test.ExpectEquality(t, det.Engaged(), false)

	// and back to relaxed. the window has not changed so the next
	// observation re-engages
	det.SetStrict(false)
	det.Observe(0x0200)
	test.ExpectEquality(t, det.Engaged(), true)
}

func TestReset(t *testing.T) {
	det := loopdetect.NewDetector(loopdetect.DefaultParameters())

	fillLoop(det, []uint16{0x0200, 0x0202, 0x0204}, 100)
	test.ExpectEquality(t, det.Engaged(), true)

	det.Reset()
	test.ExpectEquality(t, det.Engaged(), false)
	test.ExpectEquality(t, det.Distinct(), 0)
}

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

// Package loopdetect implements the wait-loop detector behind the
// fast-forward mechanism.
//
// Firmware implements blocking delays with tight busy-wait loops. Stepping
// those loops one instruction at a time would take minutes of wall-clock
// time for a few simulated seconds, so the step loop asks this detector
// whether execution is stuck in a loop and, if it is, advances the cycle
// counter in large batches instead.
//
// Detection is probabilistic: a sliding window of recently executed
// instruction addresses is kept and the number of distinct addresses in the
// window is the signal. Very low diversity means a tight loop. The detector
// cannot distinguish a pure delay loop from a polling loop that also
// toggles pins, so a peripheral that depends on register-level edge timing
// must declare itself timing sensitive; while any such peripheral is
// plugged the detector runs with a near-disabled engage threshold.
//
// A misclassification is fail-soft by construction. The worst outcome is
// wrongly accelerated (or wrongly unaccelerated) time, never a crash.
package loopdetect

import (
	"fmt"
)

// Parameters are the tunable values of the detector. The accuracy of the
// detector is empirical; these are exposed as configuration rather than
// buried as constants.
type Parameters struct {
	// number of recently executed addresses to keep
	WindowSize int

	// engage fast-forward when the number of distinct addresses in a full
	// window is at or below this value
	EngageBelow int

	// the engage threshold used while a timing-sensitive peripheral is
	// plugged. a two-address window is the tightest loop a real delay
	// routine can produce, so the default of two leaves everything else
	// alone
	StrictEngageBelow int

	// disengage once the number of distinct addresses rises to or above
	// this value
	DisengageAbove int

	// addresses below this boundary are bootstrap/startup code and are
	// never fed to the window
	FirmwareOrigin uint16

	// cycles to advance per step while engaged
	BatchCycles int
}

// DefaultParameters returns the documented default tuning.
func DefaultParameters() Parameters {
	return Parameters{
		WindowSize:        100,
		EngageBelow:       4,
		StrictEngageBelow: 2,
		DisengageAbove:    10,
		FirmwareOrigin:    0x0100,
		BatchCycles:       10000,
	}
}

// Detector decides whether execution is currently inside a busy-wait loop.
type Detector struct {
	p Parameters

	// ring buffer of recently executed addresses
	window []uint16
	cursor int
	filled bool

	// occurrence count per address in the window, and the derived number of
	// distinct addresses. maintained incrementally
	counts   map[uint16]int
	distinct int

	engaged bool
	strict  bool
}

// NewDetector is the preferred method of initialisation for the Detector
// type.
func NewDetector(p Parameters) *Detector {
	if p.WindowSize <= 0 {
		p = DefaultParameters()
	}
	return &Detector{
		p:      p,
		window: make([]uint16, p.WindowSize),
		counts: make(map[uint16]int, p.WindowSize),
	}
}

func (det *Detector) String() string {
	return fmt.Sprintf("loopdetect: distinct=%d engaged=%v strict=%v", det.distinct, det.engaged, det.strict)
}

// Parameters returns the tuning the detector was created with.
func (det *Detector) Parameters() Parameters {
	return det.p
}

// SetStrict switches the detector between the relaxed and the near-disabled
// engage thresholds. Set while any timing-sensitive peripheral is plugged.
func (det *Detector) SetStrict(strict bool) {
	det.strict = strict

	// conservatively drop out of fast-forward if the current window would
	// not have engaged under the new threshold
	if strict && det.engaged && det.distinct > det.p.StrictEngageBelow {
		det.engaged = false
	}
}

// Engaged returns true while the detector believes execution is inside a
// busy-wait loop.
func (det *Detector) Engaged() bool {
	return det.engaged
}

// Distinct returns the number of distinct addresses in the window.
func (det *Detector) Distinct() int {
	return det.distinct
}

// BatchCycles returns the number of cycles the step loop should advance per
// step while the detector is engaged.
func (det *Detector) BatchCycles() int {
	return det.p.BatchCycles
}

// Observe feeds the address of the instruction about to be executed to the
// detector. Addresses below the firmware origin are ignored so that
// bootstrap code can never engage fast-forward.
func (det *Detector) Observe(address uint16) {
	if address < det.p.FirmwareOrigin {
		return
	}

	if det.filled {
		evicted := det.window[det.cursor]
		det.counts[evicted]--
		if det.counts[evicted] == 0 {
			delete(det.counts, evicted)
			det.distinct--
		}
	}

	det.window[det.cursor] = address
	det.cursor++
	if det.cursor == len(det.window) {
		det.cursor = 0
		det.filled = true
	}

	det.counts[address]++
	if det.counts[address] == 1 {
		det.distinct++
	}

	det.update()
}

func (det *Detector) update() {
	if det.engaged {
		if det.distinct >= det.p.DisengageAbove {
			det.engaged = false
		}
		return
	}

	// only a full window can engage. a short prefix of low diversity says
	// nothing
	if !det.filled {
		return
	}

	threshold := det.p.EngageBelow
	if det.strict {
		threshold = det.p.StrictEngageBelow
	}
	if det.distinct <= threshold {
		det.engaged = true
	}
}

// Reset returns the detector to its initial state. The strict setting is
// retained; it reflects what is plugged into the board, not execution
// history.
func (det *Detector) Reset() {
	for i := range det.window {
		det.window[i] = 0
	}
	det.cursor = 0
	det.filled = false
	det.engaged = false
	det.distinct = 0
	clear(det.counts)
}

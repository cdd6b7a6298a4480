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

// Package timer emulates the hardware timer/counter units of the board: an
// 8-bit unit (Timer0) and a 16-bit unit (Timer1).
//
// A timer converts raw CPU cycles into counter increments through a
// prescaler. Cycles that do not amount to a whole prescaler division are
// carried in a remainder accumulator, so no cycle is ever lost or counted
// twice regardless of how time is chopped up by the step loop or by the
// fast-forward heuristic.
//
// The prescaler and waveform mode are read live from the control registers
// on every Tick() call. The counter value is written back to the register
// file after every Tick() so that firmware polling the counter register sees
// consistent state.
package timer

import (
	"fmt"

	"github.com/hexbench/breadbox/hardware/interrupts"
	"github.com/hexbench/breadbox/hardware/memory"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/logger"
)

// Prescaler is the clock-division factor applied before the counter is
// incremented.
type Prescaler int

// List of valid Prescaler values. PrescalerOff stops the timer.
const (
	PrescalerOff  Prescaler = 0
	Prescaler1    Prescaler = 1
	Prescaler8    Prescaler = 8
	Prescaler64   Prescaler = 64
	Prescaler256  Prescaler = 256
	Prescaler1024 Prescaler = 1024
)

func (p Prescaler) String() string {
	if p == PrescalerOff {
		return "off"
	}
	return fmt.Sprintf("/%d", int(p))
}

// prescalerFromBits maps the clock-select field of a TCCRnB register to a
// Prescaler value. The external-clock selections (0b110 and 0b111) are not
// modelled; ok is false for those.
func prescalerFromBits(cs uint8) (Prescaler, bool) {
	switch cs & registers.ClockSelectMask {
	case 0x00:
		return PrescalerOff, true
	case 0x01:
		return Prescaler1, true
	case 0x02:
		return Prescaler8, true
	case 0x03:
		return Prescaler64, true
	case 0x04:
		return Prescaler256, true
	case 0x05:
		return Prescaler1024, true
	}
	return PrescalerOff, false
}

// Mode is the waveform generation mode of a timer.
type Mode int

// List of modelled Mode values. Waveform combinations outside this list are
// treated as ModeReserved, which freezes the counter.
const (
	ModeNormal Mode = iota
	ModeCTC
	ModeFastPWM
	ModePhaseCorrect
	ModeReserved
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeCTC:
		return "ctc"
	case ModeFastPWM:
		return "fast-pwm"
	case ModePhaseCorrect:
		return "phase-correct"
	}
	return "reserved"
}

// Definition fixes the register set and interrupt vectors for one timer
// unit. For the 8-bit unit the high-byte and input-capture addresses are
// zero, meaning unused.
type Definition struct {
	Label string

	// counter width in bits. 8 or 16
	Width int

	TCCRA uint16
	TCCRB uint16
	CNTL  uint16
	CNTH  uint16
	OCRAL uint16
	OCRAH uint16
	OCRBL uint16
	OCRBH uint16
	ICRL  uint16
	ICRH  uint16
	TIFR  uint16
	TIMSK uint16

	VectorOVF   interrupts.VectorID
	VectorCOMPA interrupts.VectorID
	VectorCOMPB interrupts.VectorID
}

// Timer0 is the definition of the 8-bit timer unit.
var Timer0 = Definition{
	Label:       "timer0",
	Width:       8,
	TCCRA:       registers.TCCR0A,
	TCCRB:       registers.TCCR0B,
	CNTL:        registers.TCNT0,
	OCRAL:       registers.OCR0A,
	OCRBL:       registers.OCR0B,
	TIFR:        registers.TIFR0,
	TIMSK:       registers.TIMSK0,
	VectorOVF:   interrupts.Timer0Overflow,
	VectorCOMPA: interrupts.Timer0CompareA,
	VectorCOMPB: interrupts.Timer0CompareB,
}

// Timer1 is the definition of the 16-bit timer unit.
var Timer1 = Definition{
	Label:       "timer1",
	Width:       16,
	TCCRA:       registers.TCCR1A,
	TCCRB:       registers.TCCR1B,
	CNTL:        registers.TCNT1L,
	CNTH:        registers.TCNT1H,
	OCRAL:       registers.OCR1AL,
	OCRAH:       registers.OCR1AH,
	OCRBL:       registers.OCR1BL,
	OCRBH:       registers.OCR1BH,
	ICRL:        registers.ICR1L,
	ICRH:        registers.ICR1H,
	TIFR:        registers.TIFR1,
	TIMSK:       registers.TIMSK1,
	VectorOVF:   interrupts.Timer1Overflow,
	VectorCOMPA: interrupts.Timer1CompareA,
	VectorCOMPB: interrupts.Timer1CompareB,
}

// Raiser is the connection from a timer to the interrupt controller.
type Raiser interface {
	Raise(vector interrupts.VectorID)
}

// Timer emulates one timer/counter unit.
type Timer struct {
	env logger.Permission
	mem *memory.RegisterFile
	irq Raiser
	def Definition

	// largest value the counter can hold. 0xff or 0xffff
	max uint32

	counter uint32

	// phase-correct counting direction. +1 or -1
	direction int32

	// cycles that have not yet amounted to a whole prescaler division
	cycleRemainder int

	// whether the most recent Tick() wrapped the counter. detected at most
	// once per Tick() batch
	overflowed bool

	// reserved modes and external clock selections are warned about once,
	// not on every Tick()
	warnedMode bool
	warnedClk  bool
}

// NewTimer is the preferred method of initialisation for the Timer type.
func NewTimer(env logger.Permission, mem *memory.RegisterFile, irq Raiser, def Definition) *Timer {
	tmr := &Timer{
		env:       env,
		mem:       mem,
		irq:       irq,
		def:       def,
		max:       uint32(1)<<def.Width - 1,
		direction: 1,
	}
	tmr.writeback()
	return tmr
}

func (tmr *Timer) String() string {
	p, _ := prescalerFromBits(tmr.mem.Read8(tmr.def.TCCRB))
	return fmt.Sprintf("%s: cnt=%#04x mode=%s clk=%s remn=%d",
		tmr.def.Label, tmr.counter, tmr.mode(), p, tmr.cycleRemainder,
	)
}

// Label returns the name of the timer unit.
func (tmr *Timer) Label() string {
	return tmr.def.Label
}

// Counter returns the current counter value.
func (tmr *Timer) Counter() uint32 {
	return tmr.counter
}

// Overflowed returns true if the most recent Tick() wrapped the counter.
func (tmr *Timer) Overflowed() bool {
	return tmr.overflowed
}

// mode decodes the waveform generation bits of the control registers.
func (tmr *Timer) mode() Mode {
	wgm := tmr.mem.Read8(tmr.def.TCCRA) & registers.WGMMaskA
	b := tmr.mem.Read8(tmr.def.TCCRB)
	if b&registers.WGM2Bit == registers.WGM2Bit {
		wgm |= 0x04
	}
	if tmr.def.Width == 16 && b&registers.WGM3Bit == registers.WGM3Bit {
		wgm |= 0x08
	}

	switch wgm {
	case 0x00:
		return ModeNormal
	case 0x01:
		return ModePhaseCorrect
	case 0x02:
		return ModeCTC
	case 0x03:
		return ModeFastPWM
	}

	if tmr.def.Width == 16 {
		switch wgm {
		case 0x08:
			// phase-correct with ICR as top
			return ModePhaseCorrect
		case 0x0e:
			// fast PWM with ICR as top
			return ModeFastPWM
		}
	}

	return ModeReserved
}

// top returns the reload value for the current mode. ok is false if the mode
// is reserved or the configured top is degenerate.
func (tmr *Timer) top(mode Mode) (uint32, bool) {
	switch mode {
	case ModeNormal:
		return tmr.max, true

	case ModeCTC:
		t := tmr.readPair(tmr.def.OCRAL, tmr.def.OCRAH)
		if t == 0 {
			return 0, false
		}
		return t, true

	case ModeFastPWM, ModePhaseCorrect:
		if tmr.def.Width == 16 {
			if t := tmr.readPair(tmr.def.ICRL, tmr.def.ICRH); t > 0 {
				return t, true
			}
			// ICR not configured. fall back to the full counter range
			return tmr.max, true
		}
		return tmr.max, true
	}

	return 0, false
}

func (tmr *Timer) readPair(lo uint16, hi uint16) uint32 {
	v := uint32(tmr.mem.Read8(lo))
	if hi != 0 {
		v |= uint32(tmr.mem.Read8(hi)) << 8
	}
	return v
}

// Tick converts the given number of CPU cycles into counter increments,
// raising overflow and compare-match interrupts as required. The updated
// counter value is written back to the register file.
//
// Cycle counts smaller than the prescaler division are carried over to the
// next call.
func (tmr *Timer) Tick(cpuCycles int) {
	// zero cycles must be a true no-op, including leaving the overflow flag
	// of the previous batch alone
	if cpuCycles <= 0 {
		return
	}

	tmr.overflowed = false

	p, ok := prescalerFromBits(tmr.mem.Read8(tmr.def.TCCRB))
	if !ok {
		if !tmr.warnedClk {
			logger.Logf(tmr.env, tmr.def.Label, "external clock selection is not modelled, counter frozen")
			tmr.warnedClk = true
		}
		return
	}
	tmr.warnedClk = false

	if p == PrescalerOff {
		return
	}

	mode := tmr.mode()
	top, ok := tmr.top(mode)
	if !ok {
		if !tmr.warnedMode {
			logger.Logf(tmr.env, tmr.def.Label, "unsupported waveform mode, counter frozen")
			tmr.warnedMode = true
		}
		return
	}
	tmr.warnedMode = false

	tmr.cycleRemainder += cpuCycles
	ticks := tmr.cycleRemainder / int(p)
	tmr.cycleRemainder -= ticks * int(p)

	if ticks == 0 {
		return
	}

	if mode == ModePhaseCorrect {
		tmr.advanceSymmetric(ticks, top)
	} else {
		tmr.advanceWrapping(ticks, top)
	}

	tmr.writeback()
}

// advanceWrapping advances the counter for the modes that wrap to zero on
// reaching top (normal, CTC, fast PWM).
func (tmr *Timer) advanceWrapping(ticks int, top uint32) {
	span := uint64(top) + 1
	pos := uint64(tmr.counter)
	n := uint64(ticks)

	// a counter value beyond top can happen when the mode or top changed
	// under a running counter. treat the current position as top
	if pos > uint64(top) {
		pos = uint64(top)
	}

	// first arrival at the target value, in ticks. a target equal to the
	// current position is a whole lap away
	arrival := func(target uint64) uint64 {
		d := (target + span - pos) % span
		if d == 0 {
			d = span
		}
		return d
	}

	if n >= arrival(0) {
		tmr.overflowed = true
		tmr.setFlag(registers.TOV, tmr.def.VectorOVF)
	}

	if ca := uint64(tmr.readPair(tmr.def.OCRAL, tmr.def.OCRAH)); ca < span && n >= arrival(ca) {
		tmr.setFlag(registers.OCFA, tmr.def.VectorCOMPA)
	}
	if cb := uint64(tmr.readPair(tmr.def.OCRBL, tmr.def.OCRBH)); cb < span && n >= arrival(cb) {
		tmr.setFlag(registers.OCFB, tmr.def.VectorCOMPB)
	}

	tmr.counter = uint32((pos + n) % span)
}

// advanceSymmetric advances the counter for the phase-correct mode, in which
// the counter runs up to top and back down to zero. the overflow flag is set
// at the bottom of the run.
func (tmr *Timer) advanceSymmetric(ticks int, top uint32) {
	if top == 0 {
		return
	}

	ca := tmr.readPair(tmr.def.OCRAL, tmr.def.OCRAH)
	cb := tmr.readPair(tmr.def.OCRBL, tmr.def.OCRBH)

	pos := int64(tmr.counter)
	if pos > int64(top) {
		pos = int64(top)
	}
	dir := int64(tmr.direction)

	for i := 0; i < ticks; i++ {
		pos += dir
		if pos >= int64(top) {
			pos = int64(top)
			dir = -1
		} else if pos <= 0 {
			pos = 0
			dir = 1
			tmr.overflowed = true
			tmr.setFlag(registers.TOV, tmr.def.VectorOVF)
		}
		if pos == int64(ca) {
			tmr.setFlag(registers.OCFA, tmr.def.VectorCOMPA)
		}
		if pos == int64(cb) {
			tmr.setFlag(registers.OCFB, tmr.def.VectorCOMPB)
		}
	}

	tmr.counter = uint32(pos)
	tmr.direction = int32(dir)
}

// setFlag sets a bit in the timer's interrupt flag register and raises the
// corresponding vector if it is unmasked.
func (tmr *Timer) setFlag(flag uint8, vector interrupts.VectorID) {
	tmr.mem.ChipWrite(tmr.def.TIFR, tmr.mem.Read8(tmr.def.TIFR)|flag)
	if tmr.mem.Read8(tmr.def.TIMSK)&flag == flag {
		tmr.irq.Raise(vector)
	}
}

// writeback copies the counter value to the register file so that firmware
// reads observe consistent state.
func (tmr *Timer) writeback() {
	tmr.mem.ChipWrite(tmr.def.CNTL, uint8(tmr.counter))
	if tmr.def.CNTH != 0 {
		tmr.mem.ChipWrite(tmr.def.CNTH, uint8(tmr.counter>>8))
	}
}

// ServiceWrite gives the timer the chance to react to a CPU write to one of
// its registers. Returns true if the write was serviced.
//
// Only counter writes need servicing; the control and compare registers are
// read live on every Tick().
func (tmr *Timer) ServiceWrite(address uint16) bool {
	switch address {
	case tmr.def.CNTL, tmr.def.CNTH:
		if address == tmr.def.CNTH && tmr.def.CNTH == 0 {
			return false
		}
		tmr.counter = tmr.readPair(tmr.def.CNTL, tmr.def.CNTH)
		tmr.cycleRemainder = 0
		tmr.direction = 1
		return true
	}
	return false
}

// Reset returns the timer to its power-on state.
func (tmr *Timer) Reset() {
	tmr.counter = 0
	tmr.cycleRemainder = 0
	tmr.direction = 1
	tmr.overflowed = false
	tmr.writeback()
}

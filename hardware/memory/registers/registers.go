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

// Package registers is the single source of register addresses and bit masks
// for the emulated board. Other packages must refer to registers by the
// names defined here and never by raw numeric address.
//
// The layout follows the common megaAVR I/O register file. Only the
// registers relevant to the emulated peripheral set are named.
package registers

// Space is the size of the register file in bytes.
const Space = 0x100

// port registers.
const (
	PINB  uint16 = 0x23
	DDRB  uint16 = 0x24
	PORTB uint16 = 0x25
	PINC  uint16 = 0x26
	DDRC  uint16 = 0x27
	PORTC uint16 = 0x28
	PIND  uint16 = 0x29
	DDRD  uint16 = 0x2a
	PORTD uint16 = 0x2b
)

// timer interrupt flag registers.
const (
	TIFR0 uint16 = 0x35
	TIFR1 uint16 = 0x36
)

// 8-bit timer (Timer0) registers.
const (
	TCCR0A uint16 = 0x44
	TCCR0B uint16 = 0x45
	TCNT0  uint16 = 0x46
	OCR0A  uint16 = 0x47
	OCR0B  uint16 = 0x48
)

// status register. bit 7 is the global interrupt enable.
const SREG uint16 = 0x5f

// timer interrupt mask registers.
const (
	TIMSK0 uint16 = 0x6e
	TIMSK1 uint16 = 0x6f
)

// 16-bit timer (Timer1) registers.
const (
	TCCR1A uint16 = 0x80
	TCCR1B uint16 = 0x81
	TCNT1L uint16 = 0x84
	TCNT1H uint16 = 0x85
	ICR1L  uint16 = 0x86
	ICR1H  uint16 = 0x87
	OCR1AL uint16 = 0x88
	OCR1AH uint16 = 0x89
	OCR1BL uint16 = 0x8a
	OCR1BH uint16 = 0x8b
)

// SREG bits.
const (
	SREGGlobalInterruptEnable = 0x80
)

// clock-select field of the TCCRnB registers.
const (
	ClockSelectMask = 0x07
)

// waveform-generation bits. WGM bits 0 and 1 live in TCCRnA, the remainder
// in TCCRnB.
const (
	WGMMaskA = 0x03
	WGM2Bit  = 0x08
	WGM3Bit  = 0x10
)

// timer flag/mask register bits. the same bit positions are used by the TIFR
// and TIMSK registers.
const (
	TOV  = 0x01
	OCFA = 0x02
	OCFB = 0x04
)

// Canonical is the list of named addresses along with the canonical names
// for those addresses. Used for logging and for symbolic display in the
// monitor. Not used in the emulation hot path because of the map overhead.
var Canonical = map[uint16]string{
	PINB:   "PINB",
	DDRB:   "DDRB",
	PORTB:  "PORTB",
	PINC:   "PINC",
	DDRC:   "DDRC",
	PORTC:  "PORTC",
	PIND:   "PIND",
	DDRD:   "DDRD",
	PORTD:  "PORTD",
	TIFR0:  "TIFR0",
	TIFR1:  "TIFR1",
	TCCR0A: "TCCR0A",
	TCCR0B: "TCCR0B",
	TCNT0:  "TCNT0",
	OCR0A:  "OCR0A",
	OCR0B:  "OCR0B",
	SREG:   "SREG",
	TIMSK0: "TIMSK0",
	TIMSK1: "TIMSK1",
	TCCR1A: "TCCR1A",
	TCCR1B: "TCCR1B",
	TCNT1L: "TCNT1L",
	TCNT1H: "TCNT1H",
	ICR1L:  "ICR1L",
	ICR1H:  "ICR1H",
	OCR1AL: "OCR1AL",
	OCR1AH: "OCR1AH",
	OCR1BL: "OCR1BL",
	OCR1BH: "OCR1BH",
}

// Name returns the canonical name for an address. Unnamed addresses are
// formatted by the caller as they see fit; an empty string is returned.
func Name(address uint16) string {
	if n, ok := Canonical[address]; ok {
		return n
	}
	return ""
}

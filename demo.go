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

package main

import (
	"github.com/hexbench/breadbox/hardware"
	"github.com/hexbench/breadbox/hardware/clocks"
	"github.com/hexbench/breadbox/hardware/cpu/replay"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/peripherals"
	"github.com/hexbench/breadbox/peripherals/lcd"
	"github.com/hexbench/breadbox/peripherals/servo"
)

// the demo breadboard follows the most common hobbyist wiring: a 16x2
// display on PB4 (RS), PB3 (EN) and PD2 to PD5 (D4 to D7); a servo signal on
// PB1, the output compare pin of Timer1 channel A.
const (
	demoRS = 4
	demoEN = 3
)

var demoDataPins = []peripherals.Pin{
	{Port: registers.PORTD, Bit: 2},
	{Port: registers.PORTD, Bit: 3},
	{Port: registers.PORTD, Bit: 4},
	{Port: registers.PORTD, Bit: 5},
}

// demoBoard assembles a board with the demo peripherals plugged. The servo
// is always plugged; the display only when withDisplay is set (an
// edge-sensitive display forbids fast-forwarding, which matters for
// performance measurement).
func demoBoard(withDisplay bool) (*hardware.Board, error) {
	brd := hardware.NewBoard(nil)

	srv, err := servo.NewServo(brd, "servo", brd.Bridge, brd.Clk, servo.Config{
		SignalPin:   peripherals.Pin{Port: registers.PORTB, Bit: 1},
		CompareLow:  registers.OCR1AL,
		CompareHigh: registers.OCR1AH,
		Top: func() uint16 {
			return brd.Mem.Read16(registers.ICR1L, registers.ICR1H)
		},
		MaxTorqueKgCm: 2.5,
	})
	if err != nil {
		return nil, err
	}
	brd.Devices.Plug(srv)

	if withDisplay {
		dsp, err := lcd.NewLCD(brd, "lcd", brd.Bridge, lcd.PinAssignment{
			RS:   peripherals.Pin{Port: registers.PORTB, Bit: demoRS},
			EN:   peripherals.Pin{Port: registers.PORTB, Bit: demoEN},
			Data: demoDataPins,
		}, lcd.Geometry16x2)
		if err != nil {
			return nil, err
		}
		brd.Devices.Plug(dsp)
	}

	return brd, nil
}

// opBuilder accumulates replay ops, tracking the port B and port D shadows
// the way real firmware tracks them in registers.
type opBuilder struct {
	ops   []replay.Op
	portB uint8
	portD uint8
}

func (b *opBuilder) add(ops ...replay.Op) {
	b.ops = append(b.ops, ops...)
}

func (b *opBuilder) writeB(value uint8) {
	b.portB = value
	b.add(replay.Write(registers.PORTB, value))
}

// lcdNibble places a nibble on the data lines and pulses the enable line.
func (b *opBuilder) lcdNibble(nibble uint8) {
	d := b.portD
	for i, p := range demoDataPins {
		mask := uint8(1) << p.Bit
		if nibble&(1<<i) != 0 {
			d |= mask
		} else {
			d &^= mask
		}
	}
	b.portD = d
	b.add(replay.Write(registers.PORTD, d))
	b.writeB(b.portB | 1<<demoEN)
	b.writeB(b.portB &^ (1 << demoEN))
}

// lcdByte transmits a byte in the 4-bit protocol, high nibble first.
func (b *opBuilder) lcdByte(rs bool, value uint8) {
	if rs {
		b.writeB(b.portB | 1<<demoRS)
	} else {
		b.writeB(b.portB &^ (1 << demoRS))
	}
	b.lcdNibble(value >> 4)
	b.lcdNibble(value & 0x0f)
}

func (b *opBuilder) lcdPrint(s string) {
	for i := 0; i < len(s); i++ {
		b.lcdByte(true, s[i])
	}
}

// demoProgram builds the firmware for the demo board: initialise the
// display, configure the 50Hz servo frame on Timer1 and sweep the arm from
// end to end forever.
func demoProgram(withDisplay bool) []replay.Op {
	b := &opBuilder{}

	if withDisplay {
		b.lcdByte(false, 0x28) // function set: 4-bit, two lines
		b.lcdByte(false, 0x0c) // display on
		b.lcdByte(false, 0x01) // clear
		b.lcdPrint("BREADBOX")
		b.lcdByte(false, 0x80|0x40)
		b.lcdPrint("servo demo")
	}

	// fast PWM, ICR1 top, prescaler 8: the 50Hz servo frame
	b.add(
		replay.Write(registers.TCCR1A, 0x02),
		replay.Write(registers.TCCR1B, 0x18|0x02),
		replay.Write(registers.ICR1H, uint8(39999>>8)),
		replay.Write(registers.ICR1L, uint8(39999&0xff)),
		replay.Write(registers.SREG, registers.SREGGlobalInterruptEnable),
		replay.Write(registers.TIMSK1, registers.TOV),
	)

	// sweep: 1000µs pulse (0 degrees), wait, 2000µs pulse (180 degrees),
	// wait, repeat
	sweep := len(b.ops)
	b.add(
		replay.Write(registers.OCR1AH, uint8(2000>>8)),
		replay.Write(registers.OCR1AL, uint8(2000&0xff)),
		replay.DelayMillis(600, clocks.CyclesPerMilli),
		replay.Write(registers.OCR1AH, uint8(4000>>8)),
		replay.Write(registers.OCR1AL, uint8(4000&0xff)),
		replay.DelayMillis(600, clocks.CyclesPerMilli),
		replay.Jump(sweep),
	)

	return b.ops
}

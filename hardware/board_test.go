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

package hardware_test

import (
	"testing"

	"github.com/hexbench/breadbox/hardware"
	"github.com/hexbench/breadbox/hardware/clocks"
	"github.com/hexbench/breadbox/hardware/cpu/replay"
	"github.com/hexbench/breadbox/hardware/interrupts"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/peripherals"
	"github.com/hexbench/breadbox/peripherals/lcd"
	"github.com/hexbench/breadbox/peripherals/servo"
	"github.com/hexbench/breadbox/test"
)

// the canonical 50Hz servo setup: fast PWM with ICR1 as top, prescaler 8,
// ICR1 = 39999.
func servoFrameProgram(compare uint16) []replay.Op {
	return []replay.Op{
		replay.Write(registers.TCCR1A, 0x02),
		replay.Write(registers.TCCR1B, 0x18|0x02),
		replay.Write(registers.ICR1H, uint8(39999>>8)),
		replay.Write(registers.ICR1L, uint8(39999&0xff)),
		replay.Write(registers.OCR1AH, uint8(compare>>8)),
		replay.Write(registers.OCR1AL, uint8(compare&0xff)),
		replay.DelayMillis(1000, clocks.CyclesPerMilli),
		replay.Halt(),
	}
}

func attachReplay(t *testing.T, brd *hardware.Board, prog []replay.Op) *replay.Core {
	t.Helper()
	cor, err := replay.NewCore(brd.Mem, prog)
	if err != nil {
		t.Fatal(err)
	}
	brd.AttachCore(cor)
	return cor
}

func plugServo(t *testing.T, brd *hardware.Board) *servo.Servo {
	t.Helper()
	srv, err := servo.NewServo(brd, "servo", brd.Bridge, brd.Clk, servo.Config{
		SignalPin:   peripherals.Pin{Port: registers.PORTB, Bit: 1},
		CompareLow:  registers.OCR1AL,
		CompareHigh: registers.OCR1AH,
		Top: func() uint16 {
			return brd.Mem.Read16(registers.ICR1L, registers.ICR1H)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	brd.Devices.Plug(srv)
	return srv
}

func TestStepWithoutCore(t *testing.T) {
	brd := hardware.NewBoard(nil)
	test.ExpectFailure(t, brd.Step())
}

// the full path from a firmware register write to a moving servo arm: PWM
// configuration decoded through the observer bridge, motion driven on the
// simulated-time cadence, fast-forward engaged by the firmware's wait loop.
func TestServoEndToEnd(t *testing.T) {
	brd := hardware.NewBoard(nil)
	srv := plugServo(t, brd)
	attachReplay(t, brd, servoFrameProgram(3000)) // 1500µs: 90 degrees

	if err := brd.RunForMillis(400); err != nil {
		t.Fatal(err)
	}

	test.ExpectEquality(t, srv.LastPulse().Valid, true)
	test.ExpectApproximate(t, srv.TargetAngle(), 90.0, 0.1)

	// 400ms is ample at 500 degrees per second
	test.ExpectApproximate(t, srv.CurrentAngle(), 90.0, 1.5)

	// the servo is not timing sensitive, so the firmware wait loop engaged
	// the fast-forward
	test.ExpectEquality(t, brd.Detector.Engaged(), true)
}

// with no timing-sensitive device plugged, simulated time during a wait loop
// runs far ahead of the instruction count.
func TestFastForwardCompression(t *testing.T) {
	brd := hardware.NewBoard(nil)
	attachReplay(t, brd, []replay.Op{
		replay.DelayMillis(1000, clocks.CyclesPerMilli),
		replay.Halt(),
	})

	steps := 0
	err := brd.Run(func() (bool, error) {
		steps++
		return brd.Clk.NowMillis() < 500 && steps < 2_000_000, nil
	})
	test.ExpectSuccess(t, err)

	// 500 simulated milliseconds is 8 million cycles. without fast-forward
	// that is 8 million steps
	if steps > 100_000 {
		t.Fatalf("fast-forward never compressed the wait loop: %d steps", steps)
	}
}

// plugging the display decoder forces the strict detector threshold and the
// wait loop no longer fast-forwards.
func TestDisplayDisablesFastForward(t *testing.T) {
	brd := hardware.NewBoard(nil)

	dsp, err := lcd.NewLCD(brd, "lcd", brd.Bridge, lcd.PinAssignment{
		RS: peripherals.Pin{Port: registers.PORTB, Bit: 0},
		EN: peripherals.Pin{Port: registers.PORTB, Bit: 1},
		Data: []peripherals.Pin{
			{Port: registers.PORTD, Bit: 4},
			{Port: registers.PORTD, Bit: 5},
			{Port: registers.PORTD, Bit: 6},
			{Port: registers.PORTD, Bit: 7},
		},
	}, lcd.Geometry16x2)
	if err != nil {
		t.Fatal(err)
	}
	handle := brd.Devices.Plug(dsp)

	attachReplay(t, brd, []replay.Op{
		replay.DelayMillis(10, clocks.CyclesPerMilli),
		replay.Halt(),
	})

	// the replay delay loop spans three addresses, under the relaxed
	// threshold but over the strict one
	for i := 0; i < 1000; i++ {
		if err := brd.Step(); err != nil {
			t.Fatal(err)
		}
	}
	test.ExpectEquality(t, brd.Detector.Engaged(), false)

	// unplugging the decoder relaxes the detector again
	test.ExpectSuccess(t, brd.Devices.Unplug(handle))
	for i := 0; i < 1000; i++ {
		if err := brd.Step(); err != nil {
			t.Fatal(err)
		}
	}
	test.ExpectEquality(t, brd.Detector.Engaged(), true)
}

// a timer interrupt reaches the attached core through the controller and
// returns through the acknowledge wiring.
func TestTimerInterruptDispatch(t *testing.T) {
	brd := hardware.NewBoard(nil)
	attachReplay(t, brd, []replay.Op{
		replay.Write(registers.SREG, 0x80),
		replay.Write(registers.TIMSK0, registers.TOV),
		replay.Write(registers.TCCR0B, 0x01),
		replay.DelayMillis(10, clocks.CyclesPerMilli),
		replay.Halt(),
	})

	// an 8-bit timer at prescaler 1 overflows every 256 cycles, so a few
	// hundred steps are plenty for at least one full dispatch and return
	handler := interrupts.Timer0Overflow.HandlerAddress()
	sawHandler := false
	sawReturn := false
	for i := 0; i < 600; i++ {
		if err := brd.Step(); err != nil {
			t.Fatal(err)
		}
		if brd.Core().PC() == handler {
			sawHandler = true
		} else if sawHandler {
			sawReturn = true
		}
	}
	test.ExpectEquality(t, sawHandler, true)
	test.ExpectEquality(t, sawReturn, true)
}

func TestPokeServicesImmediately(t *testing.T) {
	brd := hardware.NewBoard(nil)
	srv := plugServo(t, brd)

	// establish the period reference directly
	brd.Mem.ChipWrite16(registers.ICR1L, registers.ICR1H, 39999)

	brd.Poke(registers.OCR1AH, uint8(3000>>8))
	brd.Poke(registers.OCR1AL, uint8(3000&0xff))
	test.ExpectApproximate(t, srv.TargetAngle(), 90.0, 0.1)
	test.ExpectEquality(t, brd.Peek(registers.OCR1AL), uint8(3000&0xff))
}

func TestBoardReset(t *testing.T) {
	brd := hardware.NewBoard(nil)
	srv := plugServo(t, brd)
	attachReplay(t, brd, servoFrameProgram(3000))

	if err := brd.RunForMillis(100); err != nil {
		t.Fatal(err)
	}
	test.ExpectInequality(t, srv.CurrentAngle(), 0.0)

	brd.Reset()
	test.ExpectEquality(t, srv.CurrentAngle(), 0.0)
	test.ExpectEquality(t, brd.Clk.Cycles(), uint64(0))
	test.ExpectEquality(t, brd.Peek(registers.TCCR1B), uint8(0))
	test.ExpectEquality(t, brd.Detector.Engaged(), false)
}

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

package script_test

import (
	"strings"
	"testing"

	"github.com/hexbench/breadbox/hardware"
	"github.com/hexbench/breadbox/hardware/clocks"
	"github.com/hexbench/breadbox/hardware/cpu/replay"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/peripherals"
	"github.com/hexbench/breadbox/peripherals/servo"
	"github.com/hexbench/breadbox/script"
	"github.com/hexbench/breadbox/test"
)

func newScriptedBoard(t *testing.T) (*hardware.Board, *servo.Servo, *script.Host, *strings.Builder) {
	t.Helper()

	brd := hardware.NewBoard(nil)

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

	cor, err := replay.NewCore(brd.Mem, []replay.Op{
		replay.DelayMillis(5000, clocks.CyclesPerMilli),
		replay.Halt(),
	})
	if err != nil {
		t.Fatal(err)
	}
	brd.AttachCore(cor)

	output := &strings.Builder{}
	return brd, srv, script.NewHost(brd, output), output
}

func TestPeekPoke(t *testing.T) {
	brd, _, host, _ := newScriptedBoard(t)
	defer host.Close()

	err := host.RunString(`
		bbx.poke("PORTB", 0x5a)
		if bbx.peek("PORTB") ~= 0x5a then
			error("PORTB readback failed")
		end
		-- numeric addresses work too
		if bbx.peek(0x25) ~= 0x5a then
			error("numeric readback failed")
		end
	`)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, brd.Peek(registers.PORTB), uint8(0x5a))
}

// the full scenario: configure the 50Hz frame from Lua, run simulated time
// and watch the arm converge.
func TestServoScenario(t *testing.T) {
	_, srv, host, _ := newScriptedBoard(t)
	defer host.Close()

	err := host.RunString(`
		bbx.poke("ICR1H", 0x9c)
		bbx.poke("ICR1L", 0x3f)
		bbx.poke("OCR1AH", 0x0b)
		bbx.poke("OCR1AL", 0xb8)
		bbx.run(400)
	`)
	test.ExpectSuccess(t, err)
	test.ExpectApproximate(t, srv.TargetAngle(), 90.0, 0.1)
	test.ExpectApproximate(t, srv.CurrentAngle(), 90.0, 1.5)
}

func TestPrintCapture(t *testing.T) {
	_, _, host, output := newScriptedBoard(t)
	defer host.Close()

	err := host.RunString(`print("angle", bbx.servo_angle())`)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, output.String(), "angle\t0\n")
}

func TestScriptErrors(t *testing.T) {
	_, _, host, _ := newScriptedBoard(t)
	defer host.Close()

	// syntax error
	test.ExpectFailure(t, host.RunString(`this is not lua`))

	// unknown register
	test.ExpectFailure(t, host.RunString(`bbx.peek("NOSUCH")`))

	// out of range poke value
	test.ExpectFailure(t, host.RunString(`bbx.poke("PORTB", 300)`))
}

// the interpreter is sandboxed: no file or process access.
func TestSandbox(t *testing.T) {
	_, _, host, _ := newScriptedBoard(t)
	defer host.Close()

	err := host.RunString(`
		if os ~= nil then error("os library is open") end
		if io ~= nil then error("io library is open") end
	`)
	test.ExpectSuccess(t, err)
}

func TestNowAndStep(t *testing.T) {
	brd, _, host, _ := newScriptedBoard(t)
	defer host.Close()

	err := host.RunString(`
		if bbx.now() ~= 0 then error("clock did not start at zero") end
		bbx.step(100)
	`)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, brd.Clk.Cycles() >= 100, true)
}

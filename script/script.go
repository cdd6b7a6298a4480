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

// Package script hosts Lua scenario scripts. A scenario drives a board the
// way a test bench would: stepping simulated time, poking registers and
// asserting on peripheral state.
//
// The script runs in a sandboxed interpreter with a single global table
// named bbx:
//
//	bbx.step(n)              step the board n times (default 1)
//	bbx.run(ms)              run for ms of simulated time
//	bbx.motion()             drive one actuator motion update
//	bbx.peek(reg)            read a register by name or address
//	bbx.poke(reg, value)     write a register by name or address
//	bbx.now()                simulated time in milliseconds
//	bbx.lcd_line(row)        contents of a display row (1 based)
//	bbx.servo_angle()        current servo arm position in degrees
//	bbx.servo_target()       decoded servo target in degrees
//	bbx.reset()              reset the board
//	bbx.log(text)            write to the central log
package script

import (
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/hexbench/breadbox/curated"
	"github.com/hexbench/breadbox/hardware"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/logger"
	"github.com/hexbench/breadbox/peripherals"
	"github.com/hexbench/breadbox/peripherals/lcd"
	"github.com/hexbench/breadbox/peripherals/servo"
)

// Host is a Lua interpreter bound to a board.
type Host struct {
	brd    *hardware.Board
	state  *lua.LState
	output io.Writer
}

// NewHost is the preferred method of initialisation for the Host type. The
// interpreter is sandboxed: the io and os libraries are not opened.
func NewHost(brd *hardware.Board, output io.Writer) *Host {
	host := &Host{
		brd:    brd,
		output: output,
		state: lua.NewState(lua.Options{
			SkipOpenLibs: true,
		}),
	}

	// open a restricted set of libraries. scripts that want file access
	// must get it from the Go side
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.TabLibName, lua.OpenTable},
	} {
		host.state.Push(host.state.NewFunction(open.fn))
		host.state.Push(lua.LString(open.name))
		host.state.Call(1, 0)
	}

	host.register()

	return host
}

// Close releases the interpreter.
func (host *Host) Close() {
	host.state.Close()
}

// RunFile executes a scenario from a file.
func (host *Host) RunFile(filename string) error {
	if err := host.state.DoFile(filename); err != nil {
		return curated.Errorf("script: %v", err)
	}
	return nil
}

// RunString executes a scenario from a string.
func (host *Host) RunString(src string) error {
	if err := host.state.DoString(src); err != nil {
		return curated.Errorf("script: %v", err)
	}
	return nil
}

// register builds the bbx table.
func (host *Host) register() {
	tbl := host.state.NewTable()

	reg := func(name string, f lua.LGFunction) {
		host.state.SetField(tbl, name, host.state.NewFunction(f))
	}

	reg("step", host.luaStep)
	reg("run", host.luaRun)
	reg("motion", host.luaMotion)
	reg("peek", host.luaPeek)
	reg("poke", host.luaPoke)
	reg("now", host.luaNow)
	reg("lcd_line", host.luaLCDLine)
	reg("servo_angle", host.luaServoAngle)
	reg("servo_target", host.luaServoTarget)
	reg("reset", host.luaReset)
	reg("log", host.luaLog)

	host.state.SetGlobal("bbx", tbl)

	// print goes through the host's output writer so that scenario output
	// can be captured
	host.state.SetGlobal("print", host.state.NewFunction(host.luaPrint))
}

func (host *Host) luaPrint(l *lua.LState) int {
	parts := make([]string, l.GetTop())
	for i := 1; i <= l.GetTop(); i++ {
		parts[i-1] = l.Get(i).String()
	}
	io.WriteString(host.output, strings.Join(parts, "\t")+"\n")
	return 0
}

// address resolves a Lua argument into a register address. Accepts a
// canonical register name or a numeric address.
func (host *Host) address(l *lua.LState, n int) uint16 {
	switch v := l.Get(n).(type) {
	case lua.LNumber:
		return uint16(v)
	case lua.LString:
		upper := strings.ToUpper(string(v))
		for address, name := range registers.Canonical {
			if name == upper {
				return address
			}
		}
	}

	l.RaiseError("unrecognised register %s", l.Get(n).String())
	return 0
}

func (host *Host) luaStep(l *lua.LState) int {
	n := l.OptInt(1, 1)
	for i := 0; i < n; i++ {
		if err := host.brd.Step(); err != nil {
			l.RaiseError("%v", err)
		}
	}
	return 0
}

func (host *Host) luaRun(l *lua.LState) int {
	ms := l.CheckInt64(1)
	if err := host.brd.RunForMillis(ms); err != nil {
		l.RaiseError("%v", err)
	}
	return 0
}

func (host *Host) luaMotion(l *lua.LState) int {
	host.brd.StepMotion()
	return 0
}

func (host *Host) luaPeek(l *lua.LState) int {
	l.Push(lua.LNumber(host.brd.Peek(host.address(l, 1))))
	return 1
}

func (host *Host) luaPoke(l *lua.LState) int {
	address := host.address(l, 1)
	value := l.CheckInt(2)
	if value < 0 || value > 0xff {
		l.RaiseError("not a byte value: %d", value)
	}
	host.brd.Poke(address, uint8(value))
	return 0
}

func (host *Host) luaNow(l *lua.LState) int {
	l.Push(lua.LNumber(host.brd.Clk.NowMillis()))
	return 1
}

func (host *Host) luaLCDLine(l *lua.LState) int {
	row := l.CheckInt(1)

	var line lua.LValue = lua.LNil
	host.brd.Devices.Each(func(dev peripherals.Device) {
		if d, ok := dev.(*lcd.LCD); ok && line == lua.LNil {
			line = lua.LString(d.Line(row - 1))
		}
	})

	if line == lua.LNil {
		l.RaiseError("no display plugged")
	}
	l.Push(line)
	return 1
}

func (host *Host) findServo(l *lua.LState) *servo.Servo {
	var srv *servo.Servo
	host.brd.Devices.Each(func(dev peripherals.Device) {
		if s, ok := dev.(*servo.Servo); ok && srv == nil {
			srv = s
		}
	})
	if srv == nil {
		l.RaiseError("no servo plugged")
	}
	return srv
}

func (host *Host) luaServoAngle(l *lua.LState) int {
	l.Push(lua.LNumber(host.findServo(l).CurrentAngle()))
	return 1
}

func (host *Host) luaServoTarget(l *lua.LState) int {
	l.Push(lua.LNumber(host.findServo(l).TargetAngle()))
	return 1
}

func (host *Host) luaReset(l *lua.LState) int {
	host.brd.Reset()
	return 0
}

func (host *Host) luaLog(l *lua.LState) int {
	logger.Log(logger.Allow, "script", l.CheckString(1))
	return 0
}

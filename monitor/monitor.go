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

// Package monitor is a basic ANSI terminal for interactive inspection of a
// board. It steps the emulation, peeks and pokes the register file and
// prints the state of the plugged peripherals.
package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hexbench/breadbox/curated"
	"github.com/hexbench/breadbox/hardware"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/logger"
	"github.com/hexbench/breadbox/monitor/easyterm"
	"github.com/hexbench/breadbox/monitor/easyterm/ansi"
	"github.com/hexbench/breadbox/peripherals"
	"github.com/hexbench/breadbox/peripherals/lcd"
	"github.com/hexbench/breadbox/peripherals/servo"
	"golang.org/x/term"
)

// sentinal error returned by the input loop on QUIT or ctrl-c.
const userQuit = "user quit"

// Monitor is an interactive terminal attached to a board.
type Monitor struct {
	easyterm.Terminal

	brd    *hardware.Board
	reader *bufio.Reader

	history []string

	// pens are empty strings when the output is not an interactive terminal
	promptPen string
	errorPen  string
	normalPen string
}

// NewMonitor is the preferred method of initialisation for the Monitor type.
func NewMonitor(brd *hardware.Board) *Monitor {
	mon := &Monitor{
		brd:    brd,
		reader: bufio.NewReader(os.Stdin),
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		mon.promptPen = ansi.Pens["yellow"]
		mon.errorPen = ansi.Pens["red"]
		mon.normalPen = ansi.NormalPen
	}

	return mon
}

// Launch runs the monitor input loop until the user quits. The terminal is
// always returned to canonical mode on exit.
func (mon *Monitor) Launch() error {
	if err := mon.Terminal.Initialise(os.Stdin, os.Stdout); err != nil {
		return curated.Errorf("monitor: %v", err)
	}
	defer mon.Terminal.CleanUp()

	mon.Print("breadbox monitor. HELP for commands\n")

	for {
		input, err := mon.readLine()
		if err != nil {
			if curated.Is(err, userQuit) {
				return nil
			}
			return curated.Errorf("monitor: %v", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		mon.history = append(mon.history, input)

		if err := mon.execute(input); err != nil {
			if curated.Is(err, userQuit) {
				return nil
			}
			mon.Print("%s%v%s\n", mon.errorPen, err, mon.normalPen)
		}
	}
}

// readLine reads one line of input in raw mode, handling backspace, history
// recall and ctrl-c.
func (mon *Monitor) readLine() (string, error) {
	mon.RawMode()
	defer mon.CanonicalMode()

	line := make([]rune, 0, 64)
	histIdx := len(mon.history)

	redraw := func() {
		mon.Print("\r%s%s%s%s%s ", ansi.ClearLine, mon.promptPen, "[bbx]", mon.normalPen, string(line))
	}
	redraw()

	for {
		r, _, err := mon.reader.ReadRune()
		if err != nil {
			return "", err
		}

		switch r {
		case easyterm.KeyCtrlC:
			mon.Print("\r\n")
			return "", curated.Errorf(userQuit)

		case easyterm.KeyCarriageReturn:
			mon.Print("\r\n")
			return string(line), nil

		case easyterm.KeyBackspace:
			if len(line) > 0 {
				line = line[:len(line)-1]
				redraw()
			}

		case easyterm.KeyEsc:
			r, _, err = mon.reader.ReadRune()
			if err != nil {
				return "", err
			}
			if r != easyterm.EscCursor {
				continue
			}
			r, _, err = mon.reader.ReadRune()
			if err != nil {
				return "", err
			}
			switch r {
			case easyterm.CursorUp:
				if histIdx > 0 {
					histIdx--
					line = append(line[:0], []rune(mon.history[histIdx])...)
					redraw()
				}
			case easyterm.CursorDown:
				if histIdx < len(mon.history)-1 {
					histIdx++
					line = append(line[:0], []rune(mon.history[histIdx])...)
					redraw()
				} else {
					histIdx = len(mon.history)
					line = line[:0]
					redraw()
				}
			}

		default:
			if r >= 32 && r < 127 {
				line = append(line, r)
				mon.Print("%c", r)
			}
		}
	}
}

func (mon *Monitor) execute(input string) error {
	args := strings.Fields(input)
	command := strings.ToUpper(args[0])
	args = args[1:]

	switch command {
	case "QUIT", "EXIT":
		return curated.Errorf(userQuit)

	case "HELP":
		mon.Print("STEP [n]; RUN <ms>; MOTION; PEEK <reg>; POKE <reg> <val>;\n")
		mon.Print("REGS; TIMERS; INT; DETECTOR; DEVICES; LCD; SERVO; LOG; RESET; QUIT\n")

	case "STEP":
		n := 1
		if len(args) > 0 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil {
				return curated.Errorf("monitor: not a step count: %s", args[0])
			}
		}
		for i := 0; i < n; i++ {
			if err := mon.brd.Step(); err != nil {
				return err
			}
		}
		mon.Print("pc=%04x cycles=%d\n", mon.brd.Core().PC(), mon.brd.Clk.Cycles())

	case "RUN":
		if len(args) != 1 {
			return curated.Errorf("monitor: RUN wants a simulated duration in ms")
		}
		ms, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return curated.Errorf("monitor: not a duration: %s", args[0])
		}
		if err := mon.brd.RunForMillis(ms); err != nil {
			return err
		}
		mon.Print("now at %dms simulated\n", mon.brd.Clk.NowMillis())

	case "MOTION":
		mon.brd.StepMotion()

	case "PEEK":
		if len(args) != 1 {
			return curated.Errorf("monitor: PEEK wants a register")
		}
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		mon.printRegister(address)

	case "POKE":
		if len(args) != 2 {
			return curated.Errorf("monitor: POKE wants a register and a value")
		}
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 8)
		if err != nil {
			return curated.Errorf("monitor: not a byte value: %s", args[1])
		}
		mon.brd.Poke(address, uint8(value))
		mon.printRegister(address)

	case "REGS":
		for address := uint16(0); address < registers.Space; address++ {
			if registers.Name(address) != "" && mon.brd.Peek(address) != 0 {
				mon.printRegister(address)
			}
		}

	case "TIMERS":
		mon.Print("%s\n%s\n", mon.brd.Timer0, mon.brd.Timer1)

	case "INT":
		mon.Print("%s\n", mon.brd.INT)

	case "DETECTOR":
		mon.Print("%s\n", mon.brd.Detector)

	case "DEVICES":
		mon.brd.Devices.Each(func(dev peripherals.Device) {
			sensitive := ""
			if dev.TimingSensitive() {
				sensitive = " (timing sensitive)"
			}
			mon.Print("%s%s\n", dev.ID(), sensitive)
		})

	case "LCD":
		found := false
		mon.brd.Devices.Each(func(dev peripherals.Device) {
			if d, ok := dev.(*lcd.LCD); ok {
				found = true
				mon.printDisplay(d)
			}
		})
		if !found {
			return curated.Errorf("monitor: no display plugged")
		}

	case "SERVO":
		found := false
		mon.brd.Devices.Each(func(dev peripherals.Device) {
			if s, ok := dev.(*servo.Servo); ok {
				found = true
				mon.Print("%s\n", s)
			}
		})
		if !found {
			return curated.Errorf("monitor: no servo plugged")
		}

	case "LOG":
		logger.BorrowLog(func(entries []logger.Entry) {
			for _, e := range entries {
				mon.Print("%s\n", e)
			}
		})

	case "RESET":
		mon.brd.Reset()
		mon.Print("board reset\n")

	default:
		return curated.Errorf("monitor: unrecognised command %s", command)
	}

	return nil
}

func (mon *Monitor) printRegister(address uint16) {
	name := registers.Name(address)
	if name == "" {
		name = fmt.Sprintf("%04x", address)
	}
	value := mon.brd.Peek(address)
	mon.Print("%s = %02x (%08b)\n", name, value, value)
}

// printDisplay draws the display buffer inside a frame, mimicking the
// bezel of a real character module.
func (mon *Monitor) printDisplay(d *lcd.LCD) {
	snp := d.Snapshot()
	if len(snp.Lines) == 0 {
		return
	}

	frame := strings.Repeat("-", len(snp.Lines[0])+2)
	state := "off"
	if snp.DisplayOn {
		state = "on"
	}

	mon.Print("%s: %s\n", d.ID(), state)
	mon.Print("+%s+\n", frame)
	for _, line := range snp.Lines {
		mon.Print("| %s |\n", line)
	}
	mon.Print("+%s+\n", frame)
}

// parseAddress resolves a canonical register name or a hex address.
func parseAddress(s string) (uint16, error) {
	upper := strings.ToUpper(s)
	for address, name := range registers.Canonical {
		if name == upper {
			return address, nil
		}
	}

	address, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		return 0, curated.Errorf("monitor: unrecognised register %s", s)
	}
	return uint16(address), nil
}

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

// Breadbox emulates the peripheral hardware of an 8-bit microcontroller
// breadboard: timers, interrupts, a character display and a hobby servo.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/bradleyjkemp/memviz"
	"golang.org/x/term"

	"github.com/hexbench/breadbox/hardware/cpu/replay"
	"github.com/hexbench/breadbox/logger"
	"github.com/hexbench/breadbox/monitor"
	"github.com/hexbench/breadbox/peripherals"
	"github.com/hexbench/breadbox/peripherals/lcd"
	"github.com/hexbench/breadbox/peripherals/servo"
	"github.com/hexbench/breadbox/performance"
	"github.com/hexbench/breadbox/script"
	"github.com/hexbench/breadbox/statsview"
)

var cli struct {
	Log   bool `help:"Echo the central log to stderr."`
	Stats bool `help:"Launch the statsview server (requires the statsview build tag)."`

	Run    runCmd    `cmd:"" default:"1" help:"Run the demo board headless or under the monitor."`
	Script scriptCmd `cmd:"" help:"Run a Lua scenario against the demo board."`
	Perf   perfCmd   `cmd:"" help:"Measure emulation performance."`
}

func main() {
	ctx := kong.Parse(&cli)

	if cli.Log {
		// colourise the echo only when stderr is an interactive terminal
		if term.IsTerminal(int(os.Stderr.Fd())) {
			logger.SetEcho(logger.NewColorizer(os.Stderr), false)
		} else {
			logger.SetEcho(os.Stderr, false)
		}
	}

	if cli.Stats {
		if statsview.Available() {
			statsview.Launch(os.Stdout)
		} else {
			fmt.Fprintln(os.Stderr, "statsview not available in this build")
		}
	}

	ctx.FatalIfErrorf(ctx.Run())
}

type runCmd struct {
	Millis    int64  `default:"2000" help:"Simulated time to run for, in milliseconds."`
	NoDisplay bool   `help:"Leave the display unplugged. The firmware wait loops will fast-forward."`
	Monitor   bool   `help:"Drop into the interactive monitor instead of running."`
	Memviz    string `help:"Write a graph of the board structure to the named dot file." type:"path"`
}

func (r *runCmd) Run() error {
	brd, err := demoBoard(!r.NoDisplay)
	if err != nil {
		return err
	}

	cor, err := replay.NewCore(brd.Mem, demoProgram(!r.NoDisplay))
	if err != nil {
		return err
	}
	brd.AttachCore(cor)

	if r.Memviz != "" {
		f, err := os.Create(r.Memviz)
		if err != nil {
			return err
		}
		memviz.Map(f, brd)
		if err := f.Close(); err != nil {
			return err
		}
	}

	if r.Monitor {
		return monitor.NewMonitor(brd).Launch()
	}

	if err := brd.RunForMillis(r.Millis); err != nil {
		return err
	}

	// summarise where the board ended up
	brd.Devices.Each(func(dev peripherals.Device) {
		switch d := dev.(type) {
		case *lcd.LCD:
			fmt.Printf("%s:\n%s\n", d.ID(), d)
		case *servo.Servo:
			fmt.Println(d)
		}
	})
	fmt.Printf("%dms simulated\n", brd.Clk.NowMillis())

	return nil
}

type scriptCmd struct {
	Scenario string `arg:"" type:"existingfile" help:"Lua scenario file."`
	Demo     bool   `help:"Run the demo firmware under the scenario instead of an idle core."`
}

func (s *scriptCmd) Run() error {
	brd, err := demoBoard(true)
	if err != nil {
		return err
	}

	prog := demoProgram(true)
	if !s.Demo {
		// an idle core: scenarios drive the registers themselves through
		// bbx.poke() and advance time with bbx.run()
		prog = []replay.Op{
			replay.Delay(1 << 40),
			replay.Jump(0),
		}
	}

	cor, err := replay.NewCore(brd.Mem, prog)
	if err != nil {
		return err
	}
	brd.AttachCore(cor)

	host := script.NewHost(brd, os.Stdout)
	defer host.Close()

	return host.RunFile(s.Scenario)
}

type perfCmd struct {
	Duration string `default:"5s" help:"Wall-clock duration of the measurement."`
	Profile  string `default:"none" help:"Profiles to gather: cpu, mem, trace, all or none."`
}

func (p *perfCmd) Run() error {
	profile, err := performance.ParseProfileString(p.Profile)
	if err != nil {
		return err
	}

	// no display: the measurement is of the fast-forwarding emulation
	brd, err := demoBoard(false)
	if err != nil {
		return err
	}

	cor, err := replay.NewCore(brd.Mem, demoProgram(false))
	if err != nil {
		return err
	}
	brd.AttachCore(cor)

	return performance.Check(os.Stdout, profile, brd, p.Duration)
}

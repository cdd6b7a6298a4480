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

// Package lcd reconstructs logical display commands and characters from
// electrical pin transitions, modelling the common 4-bit parallel character
// LCD controller protocol (with an 8-bit bus option).
//
// The decoder is a pure observer. It latches the data lines on the falling
// edge of the enable line, assembles nibbles into bytes in 4-bit mode, and
// maintains a character buffer and cursor. It never alters timing and must
// see every edge at the cadence the CPU actually produces, which is why it
// declares itself timing sensitive to the fast-forward mechanism.
package lcd

import (
	"strings"

	"github.com/hexbench/breadbox/curated"
	"github.com/hexbench/breadbox/hardware/observer"
	"github.com/hexbench/breadbox/logger"
	"github.com/hexbench/breadbox/peripherals"
)

// Geometry is the character layout of the display.
type Geometry struct {
	Rows int
	Cols int
}

// Geometry16x2 is the most common module size.
var Geometry16x2 = Geometry{Rows: 2, Cols: 16}

// Geometry20x4 is the larger common module size.
var Geometry20x4 = Geometry{Rows: 4, Cols: 20}

// PinAssignment wires the decoder to port register bits. Data lists the
// data lines; four entries for a 4-bit bus (D4 to D7), eight for a full
// bus.
type PinAssignment struct {
	RS   peripherals.Pin
	EN   peripherals.Pin
	Data []peripherals.Pin
}

// Snapshot is the state delivered to subscribers.
type Snapshot struct {
	Lines     []string
	CursorRow int
	CursorCol int
	DisplayOn bool
}

// SubscriptionHandle identifies a state-change subscription.
type SubscriptionHandle int

// the role a pin plays on the bus. values >= 0 index into the data lines.
const (
	roleRS = -1
	roleEN = -2
)

// LCD is the display protocol decoder.
type LCD struct {
	env logger.Permission
	id  string
	brg *observer.Bridge

	geom Geometry
	pins PinAssignment

	// bridge subscriptions, one per distinct port register
	watches []observer.Handle

	// pin role lookup: port address -> bit -> role
	roles map[uint16]map[int]int

	// current electrical levels
	rs     bool
	en     bool
	data   [8]bool
	nLines int

	// protocol state
	fourBit       bool
	expectingHigh bool
	pendingNibble uint8

	// logical display state
	buffer    [][]byte
	cursorRow int
	cursorCol int
	displayOn bool
	increment bool

	subs    map[SubscriptionHandle]func(Snapshot)
	nextSub SubscriptionHandle

	warnedCGRAM bool
}

// NewLCD is the preferred method of initialisation for the LCD type. The
// decoder subscribes to the observer bridge immediately.
func NewLCD(env logger.Permission, id string, brg *observer.Bridge, pins PinAssignment, geom Geometry) (*LCD, error) {
	if len(pins.Data) != 4 && len(pins.Data) != 8 {
		return nil, curated.Errorf("lcd: %s: %d data lines wired, want 4 or 8", id, len(pins.Data))
	}
	if geom.Rows <= 0 || geom.Cols <= 0 {
		return nil, curated.Errorf("lcd: %s: bad geometry %dx%d", id, geom.Cols, geom.Rows)
	}

	l := &LCD{
		env:           env,
		id:            id,
		brg:           brg,
		geom:          geom,
		pins:          pins,
		roles:         make(map[uint16]map[int]int),
		nLines:        len(pins.Data),
		fourBit:       len(pins.Data) == 4,
		expectingHigh: true,
		increment:     true,
		subs:          make(map[SubscriptionHandle]func(Snapshot)),
	}

	l.buffer = make([][]byte, geom.Rows)
	for i := range l.buffer {
		l.buffer[i] = make([]byte, geom.Cols)
	}
	l.blank()

	l.addRole(pins.RS, roleRS)
	l.addRole(pins.EN, roleEN)
	for i, p := range pins.Data {
		l.addRole(p, i)
	}

	for port := range l.roles {
		l.watches = append(l.watches, brg.WatchPins(port, l.pinChange))
	}

	return l, nil
}

func (l *LCD) addRole(p peripherals.Pin, role int) {
	if l.roles[p.Port] == nil {
		l.roles[p.Port] = make(map[int]int)
	}
	l.roles[p.Port][p.Bit] = role
}

// ID implements the peripherals.Device interface.
func (l *LCD) ID() string {
	return l.id
}

// TimingSensitive implements the peripherals.Device interface. The decoder
// depends on seeing individual enable-line edges so it is always timing
// sensitive.
func (l *LCD) TimingSensitive() bool {
	return true
}

// Unplug implements the peripherals.Device interface.
func (l *LCD) Unplug() {
	for _, w := range l.watches {
		l.brg.Unsubscribe(w)
	}
	l.watches = l.watches[:0]
	l.subs = make(map[SubscriptionHandle]func(Snapshot))
}

// Reset implements the peripherals.Device interface. Electrical levels are
// retained; they reflect the register file, not decoder history.
func (l *LCD) Reset() {
	l.expectingHigh = true
	l.pendingNibble = 0
	l.fourBit = l.nLines == 4
	l.displayOn = false
	l.increment = true
	l.blank()
	l.cursorRow = 0
	l.cursorCol = 0
	l.notify()
}

// OnStateChange subscribes to display state changes. The returned handle
// unsubscribes through RemoveStateChange().
func (l *LCD) OnStateChange(f func(Snapshot)) SubscriptionHandle {
	l.nextSub++
	l.subs[l.nextSub] = f
	return l.nextSub
}

// RemoveStateChange removes a state-change subscription.
func (l *LCD) RemoveStateChange(handle SubscriptionHandle) {
	delete(l.subs, handle)
}

// Snapshot returns a copy of the current display state.
func (l *LCD) Snapshot() Snapshot {
	snp := Snapshot{
		Lines:     make([]string, l.geom.Rows),
		CursorRow: l.cursorRow,
		CursorCol: l.cursorCol,
		DisplayOn: l.displayOn,
	}
	for i, row := range l.buffer {
		snp.Lines[i] = string(row)
	}
	return snp
}

// Line returns the contents of a single display row.
func (l *LCD) Line(row int) string {
	if row < 0 || row >= l.geom.Rows {
		return ""
	}
	return string(l.buffer[row])
}

func (l *LCD) String() string {
	s := strings.Builder{}
	for i, row := range l.buffer {
		if i > 0 {
			s.WriteString("\n")
		}
		s.Write(row)
	}
	return s.String()
}

// pinChange is the observer bridge subscription callback.
func (l *LCD) pinChange(ev observer.PinEvent) {
	role, ok := l.roles[ev.Address][ev.Pin]
	if !ok {
		return
	}

	switch role {
	case roleRS:
		l.rs = ev.Level
	case roleEN:
		was := l.en
		l.en = ev.Level
		// latch on the falling edge only
		if was && !ev.Level {
			l.latch()
		}
	default:
		l.data[role] = ev.Level
	}
}

// latch reads the data lines. In 4-bit mode the first latch stores the high
// nibble and the second combines it with the low nibble into a full byte.
func (l *LCD) latch() {
	if !l.fourBit {
		var b uint8
		for i := 0; i < l.nLines && i < 8; i++ {
			if l.data[i] {
				b |= 1 << i
			}
		}
		l.dispatch(b)
		return
	}

	// in 4-bit mode the nibble travels on the four highest wired lines,
	// which are the first four entries of a 4-line assignment or the last
	// four of an 8-line assignment
	first := 0
	if l.nLines == 8 {
		first = 4
	}
	var nibble uint8
	for i := 0; i < 4; i++ {
		if l.data[first+i] {
			nibble |= 1 << i
		}
	}

	if l.expectingHigh {
		l.pendingNibble = nibble << 4
		l.expectingHigh = false
		return
	}

	b := l.pendingNibble | nibble
	l.pendingNibble = 0
	l.expectingHigh = true
	l.dispatch(b)
}

// dispatch delivers a fully assembled byte as a command or as character
// data depending on the register-select line.
func (l *LCD) dispatch(b uint8) {
	if l.rs {
		l.write(b)
	} else {
		l.command(b)
	}
	l.notify()
}

func (l *LCD) command(b uint8) {
	switch {
	case b == 0x00:
		logger.Logf(l.env, "lcd", "%s: null command ignored", l.id)

	case b <= 0x03:
		// clear/home family: blank the buffer and reset the cursor
		l.blank()
		l.cursorRow = 0
		l.cursorCol = 0

	case b <= 0x07:
		// entry mode
		l.increment = b&0x02 == 0x02

	case b <= 0x0f:
		// display control
		l.displayOn = b&0x04 == 0x04

	case b <= 0x1f:
		// cursor move. display shifting is not modelled separately and is
		// treated as a cursor move in the indicated direction
		if b&0x04 == 0x04 {
			l.advance(1)
		} else {
			l.advance(-1)
		}

	case b <= 0x3f:
		// function set
		want8 := b&0x10 == 0x10
		if want8 && l.nLines < 8 {
			logger.Logf(l.env, "lcd", "%s: function set requests 8-bit bus but only 4 data lines are wired", l.id)
			return
		}
		l.fourBit = !want8
		l.expectingHigh = true
		l.pendingNibble = 0

	case b <= 0x7f:
		// CGRAM addressing. custom character definitions are not modelled
		if !l.warnedCGRAM {
			logger.Logf(l.env, "lcd", "%s: CGRAM addressing is not modelled", l.id)
			l.warnedCGRAM = true
		}

	default:
		// set cursor address. rows are 0x40 apart in the address space
		addr := b & 0x7f
		l.cursorRow = int(addr/0x40) % l.geom.Rows
		col := int(addr % 0x40)
		if col >= l.geom.Cols {
			col = l.geom.Cols - 1
		}
		l.cursorCol = col
	}
}

// write places a character at the cursor and advances the cursor according
// to the entry mode.
func (l *LCD) write(b uint8) {
	l.buffer[l.cursorRow][l.cursorCol] = b
	if l.increment {
		l.advance(1)
	} else {
		l.advance(-1)
	}
}

// advance moves the cursor by the given number of columns, wrapping across
// rows per the configured geometry.
func (l *LCD) advance(by int) {
	col := l.cursorCol + by
	row := l.cursorRow

	for col >= l.geom.Cols {
		col -= l.geom.Cols
		row = (row + 1) % l.geom.Rows
	}
	for col < 0 {
		col += l.geom.Cols
		row--
		if row < 0 {
			row = l.geom.Rows - 1
		}
	}

	l.cursorRow = row
	l.cursorCol = col
}

func (l *LCD) blank() {
	for _, row := range l.buffer {
		for i := range row {
			row[i] = ' '
		}
	}
}

func (l *LCD) notify() {
	if len(l.subs) == 0 {
		return
	}
	snp := l.Snapshot()
	for _, f := range l.subs {
		f(snp)
	}
}

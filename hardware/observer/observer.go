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

// Package observer is the bridge between raw register bytes and the typed
// events the peripheral decoders consume.
//
// The bridge is strictly read-only with respect to the register file. After
// every CPU step (or fast-forward batch) the board replays the register
// write journal through the bridge, which diffs each written byte against
// its previous snapshot. Port-register changes become one edge event per
// changed bit; watched 16-bit register pairs become a single value-changed
// event per step, no matter how many byte writes built the new value.
//
// Unchanged bytes never produce events and pin events are delivered in the
// order the registers were physically written.
package observer

import (
	"github.com/hexbench/breadbox/hardware/clocks"
	"github.com/hexbench/breadbox/hardware/memory"
)

// PinEvent describes a single pin changing level.
type PinEvent struct {
	Address uint16

	// bit position within the port register. 0 to 7
	Pin int

	// the new level of the pin
	Level bool

	TimestampMicros int64
}

// ValueEvent describes a watched 16-bit register pair changing value.
type ValueEvent struct {
	AddressLow  uint16
	AddressHigh uint16
	Old         uint16
	New         uint16
}

// PinListener receives PinEvents.
type PinListener func(PinEvent)

// ValueListener receives ValueEvents.
type ValueListener func(ValueEvent)

// Handle identifies a subscription. Returned by the Watch functions and
// accepted by Unsubscribe(). Device teardown must unsubscribe or listeners
// leak.
type Handle int

type pinSub struct {
	handle   Handle
	address  uint16
	listener PinListener
}

type pairSub struct {
	handle   Handle
	lo       uint16
	hi       uint16
	prev     uint16
	dirty    bool
	dirtyOld uint16
	listener ValueListener
}

// Bridge diffs register bytes against snapshots and notifies subscribers.
type Bridge struct {
	mem *memory.RegisterFile
	clk *clocks.TimeSource

	// previous value of every byte address with at least one pin
	// subscription
	snapshots map[uint16]uint8

	pins  []pinSub
	pairs []pairSub

	// dirty pair indexes in the order they became dirty this step
	dirtyOrder []int

	nextHandle Handle
}

// NewBridge is the preferred method of initialisation for the Bridge type.
func NewBridge(mem *memory.RegisterFile, clk *clocks.TimeSource) *Bridge {
	return &Bridge{
		mem:       mem,
		clk:       clk,
		snapshots: make(map[uint16]uint8),
	}
}

// WatchPins subscribes to per-bit edge events for a port register.
func (brg *Bridge) WatchPins(address uint16, listener PinListener) Handle {
	brg.nextHandle++
	brg.pins = append(brg.pins, pinSub{
		handle:   brg.nextHandle,
		address:  address,
		listener: listener,
	})

	// seed the snapshot with the live value so that pre-existing state does
	// not masquerade as an edge
	if _, ok := brg.snapshots[address]; !ok {
		brg.snapshots[address] = brg.mem.Read8(address)
	}

	return brg.nextHandle
}

// WatchPair subscribes to value-changed events for a 16-bit register pair.
func (brg *Bridge) WatchPair(lo uint16, hi uint16, listener ValueListener) Handle {
	brg.nextHandle++
	brg.pairs = append(brg.pairs, pairSub{
		handle:   brg.nextHandle,
		lo:       lo,
		hi:       hi,
		prev:     brg.mem.Read16(lo, hi),
		listener: listener,
	})
	return brg.nextHandle
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (brg *Bridge) Unsubscribe(handle Handle) {
	for i := range brg.pins {
		if brg.pins[i].handle == handle {
			brg.pins = append(brg.pins[:i], brg.pins[i+1:]...)
			return
		}
	}
	for i := range brg.pairs {
		if brg.pairs[i].handle == handle {
			brg.pairs = append(brg.pairs[:i], brg.pairs[i+1:]...)

			// indexes into the pairs slice have shifted
			brg.dirtyOrder = brg.dirtyOrder[:0]
			return
		}
	}
}

// ServiceWrite processes one entry of the register write journal. Pin edge
// events fire immediately, preserving write order. Pair changes are
// accumulated until Commit().
func (brg *Bridge) ServiceWrite(address uint16) {
	if old, ok := brg.snapshots[address]; ok {
		new := brg.mem.Read8(address)
		if new != old {
			brg.snapshots[address] = new
			brg.emitEdges(address, old, new)
		}
	}

	for i := range brg.pairs {
		p := &brg.pairs[i]
		if address != p.lo && address != p.hi {
			continue
		}
		if !p.dirty {
			p.dirty = true
			p.dirtyOld = p.prev
			brg.dirtyOrder = append(brg.dirtyOrder, i)
		}
	}
}

// Commit emits one value-changed event for every watched pair that was
// written this step and settled on a new value. Called by the board after
// the whole journal has been replayed; a firmware writing the high byte and
// then the low byte produces a single event.
func (brg *Bridge) Commit() {
	for _, i := range brg.dirtyOrder {
		if i >= len(brg.pairs) {
			continue
		}
		p := &brg.pairs[i]
		p.dirty = false

		new := brg.mem.Read16(p.lo, p.hi)
		if new == p.dirtyOld {
			continue
		}
		p.prev = new
		p.listener(ValueEvent{
			AddressLow:  p.lo,
			AddressHigh: p.hi,
			Old:         p.dirtyOld,
			New:         new,
		})
	}
	brg.dirtyOrder = brg.dirtyOrder[:0]
}

func (brg *Bridge) emitEdges(address uint16, old uint8, new uint8) {
	changed := old ^ new
	now := brg.clk.NowMicros()

	for bit := 0; bit < 8; bit++ {
		mask := uint8(1) << bit
		if changed&mask == 0 {
			continue
		}
		ev := PinEvent{
			Address:         address,
			Pin:             bit,
			Level:           new&mask != 0,
			TimestampMicros: now,
		}
		for i := range brg.pins {
			if brg.pins[i].address == address {
				brg.pins[i].listener(ev)
			}
		}
	}
}

// Reset re-seeds every snapshot from the live register file. No events are
// emitted.
func (brg *Bridge) Reset() {
	for a := range brg.snapshots {
		brg.snapshots[a] = brg.mem.Read8(a)
	}
	for i := range brg.pairs {
		brg.pairs[i].prev = brg.mem.Read16(brg.pairs[i].lo, brg.pairs[i].hi)
		brg.pairs[i].dirty = false
	}
	brg.dirtyOrder = brg.dirtyOrder[:0]
}

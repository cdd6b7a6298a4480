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

// Package memory implements the I/O register file shared between the
// external CPU core and the peripheral emulation.
//
// Writes arrive from two directions. CPU-side writes (firmware executing OUT
// and ST instructions) go through Write8() and are recorded in a write
// journal so that the observer bridge can replay them in the order they
// physically happened. Chip-side writes (a timer publishing its live counter
// value) go through ChipWrite() and are not journalled; peripherals never
// observe their own write-backs.
package memory

import (
	"github.com/hexbench/breadbox/hardware/memory/registers"
)

// RegisterFile is the byte-addressable I/O register space of the board.
type RegisterFile struct {
	data [registers.Space]uint8

	// addresses written by the CPU since the last DrainJournal(), in write
	// order
	journal []uint16
}

// NewRegisterFile is the preferred method of initialisation for the
// RegisterFile type.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{
		journal: make([]uint16, 0, 64),
	}
}

// Read8 returns the byte at the given address. Out of range addresses read
// as zero, matching the open-bus behaviour of the modelled hardware.
func (mem *RegisterFile) Read8(address uint16) uint8 {
	if int(address) >= len(mem.data) {
		return 0
	}
	return mem.data[address]
}

// Write8 writes a byte on behalf of the CPU. The write is recorded in the
// journal. Out of range addresses are dropped.
func (mem *RegisterFile) Write8(address uint16, value uint8) {
	if int(address) >= len(mem.data) {
		return
	}
	mem.data[address] = value
	mem.journal = append(mem.journal, address)
}

// Read16 returns the 16-bit value formed by a low/high register pair.
func (mem *RegisterFile) Read16(lo uint16, hi uint16) uint16 {
	return uint16(mem.Read8(lo)) | uint16(mem.Read8(hi))<<8
}

// ChipWrite writes a byte on behalf of a peripheral. Chip writes are not
// journalled.
func (mem *RegisterFile) ChipWrite(address uint16, value uint8) {
	if int(address) >= len(mem.data) {
		return
	}
	mem.data[address] = value
}

// ChipWrite16 writes a 16-bit value to a low/high register pair on behalf of
// a peripheral.
func (mem *RegisterFile) ChipWrite16(lo uint16, hi uint16, value uint16) {
	mem.ChipWrite(lo, uint8(value))
	mem.ChipWrite(hi, uint8(value>>8))
}

// DrainJournal calls f for every CPU write since the previous call, in write
// order, and then empties the journal.
func (mem *RegisterFile) DrainJournal(f func(address uint16)) {
	for _, a := range mem.journal {
		f(a)
	}
	mem.journal = mem.journal[:0]
}

// JournalLen returns the number of undrained journal entries.
func (mem *RegisterFile) JournalLen() int {
	return len(mem.journal)
}

// Reset zeroes the register file and empties the journal.
func (mem *RegisterFile) Reset() {
	for i := range mem.data {
		mem.data[i] = 0
	}
	mem.journal = mem.journal[:0]
}

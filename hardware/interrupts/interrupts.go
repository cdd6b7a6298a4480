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

// Package interrupts emulates the vectored interrupt unit of the board
// without requiring any support from the external CPU core beyond a jump to
// a handler address and a notification on return-from-interrupt.
//
// A vector moves through the states Idle, Pending and InService. At most one
// vector is in service at a time and dispatch is suppressed while one is:
// nested interrupts are not modelled, which matches the minimal use the
// modelled peripheral set makes of the real hardware.
package interrupts

import (
	"fmt"

	"github.com/hexbench/breadbox/hardware/memory"
	"github.com/hexbench/breadbox/hardware/memory/registers"
	"github.com/hexbench/breadbox/logger"
)

// VectorID identifies an interrupt vector. Lower values have higher
// dispatch priority, matching the hardware vector table.
type VectorID int

// List of modelled vectors. The values are the megaAVR vector table
// positions.
const (
	NoVector       VectorID = 0
	Timer1CompareA VectorID = 12
	Timer1CompareB VectorID = 13
	Timer1Overflow VectorID = 14
	Timer0CompareA VectorID = 15
	Timer0CompareB VectorID = 16
	Timer0Overflow VectorID = 17
)

// vectorTable lists the modelled vectors in priority order.
var vectorTable = []VectorID{
	Timer1CompareA,
	Timer1CompareB,
	Timer1Overflow,
	Timer0CompareA,
	Timer0CompareB,
	Timer0Overflow,
}

func (v VectorID) String() string {
	switch v {
	case Timer1CompareA:
		return "TIMER1_COMPA"
	case Timer1CompareB:
		return "TIMER1_COMPB"
	case Timer1Overflow:
		return "TIMER1_OVF"
	case Timer0CompareA:
		return "TIMER0_COMPA"
	case Timer0CompareB:
		return "TIMER0_COMPB"
	case Timer0Overflow:
		return "TIMER0_OVF"
	}
	return fmt.Sprintf("vector %d", int(v))
}

// HandlerAddress returns the entry point of the vector's handler. Vector
// table entries are two words apart.
func (v VectorID) HandlerAddress() uint16 {
	return uint16(v-1) * 4
}

// Core is the connection from the controller to the external CPU core. On
// dispatch the controller tells the core the address to execute next.
type Core interface {
	Interrupt(handlerAddress uint16)
}

// Controller maintains the pending set and dispatches at most one handler
// per DispatchPending() call.
type Controller struct {
	env  logger.Permission
	mem  *memory.RegisterFile
	core Core

	pending   map[VectorID]bool
	inService VectorID
}

// NewController is the preferred method of initialisation for the Controller
// type. The core connection is supplied later with Plug(); peripherals exist
// before the core does.
func NewController(env logger.Permission, mem *memory.RegisterFile) *Controller {
	ctrl := &Controller{
		env:     env,
		mem:     mem,
		pending: make(map[VectorID]bool, len(vectorTable)),
	}
	for _, v := range vectorTable {
		ctrl.pending[v] = false
	}
	return ctrl
}

// Plug connects the CPU core to the controller.
func (ctrl *Controller) Plug(core Core) {
	ctrl.core = core
}

func (ctrl *Controller) String() string {
	n := 0
	for _, p := range ctrl.pending {
		if p {
			n++
		}
	}
	return fmt.Sprintf("interrupts: pending=%d inservice=%s", n, ctrl.inService)
}

// Raise marks a vector as pending. Raising an unknown vector is ignored with
// a warning. Raising a vector that is currently in service is a no-op; a
// vector cannot re-trigger while its handler runs.
func (ctrl *Controller) Raise(vector VectorID) {
	if _, ok := ctrl.pending[vector]; !ok {
		logger.Logf(ctrl.env, "interrupts", "raise of unknown %s ignored", vector)
		return
	}
	if vector == ctrl.inService {
		return
	}
	ctrl.pending[vector] = true
}

// Pending returns true if the vector is in the pending state.
func (ctrl *Controller) Pending(vector VectorID) bool {
	return ctrl.pending[vector]
}

// InService returns the vector currently being serviced, or NoVector.
func (ctrl *Controller) InService() VectorID {
	return ctrl.inService
}

// GlobalEnable returns the state of the global interrupt enable flag, read
// live from the status register.
func (ctrl *Controller) GlobalEnable() bool {
	return ctrl.mem.Read8(registers.SREG)&registers.SREGGlobalInterruptEnable != 0
}

// SetGlobalEnable mirrors the global interrupt enable flag into the status
// register. For use by CPU cores that do not maintain the register file
// representation of SREG themselves.
func (ctrl *Controller) SetGlobalEnable(enable bool) {
	sreg := ctrl.mem.Read8(registers.SREG)
	if enable {
		sreg |= registers.SREGGlobalInterruptEnable
	} else {
		sreg &= ^uint8(registers.SREGGlobalInterruptEnable)
	}
	ctrl.mem.ChipWrite(registers.SREG, sreg)
}

// DispatchPending dispatches the highest-priority pending vector, if the
// global enable flag is set and no vector is currently in service. Returns
// the dispatched vector or NoVector.
//
// While a vector is in service DispatchPending() is a no-op, even if a
// higher-priority vector has become pending in the meantime.
func (ctrl *Controller) DispatchPending() VectorID {
	if ctrl.core == nil || ctrl.inService != NoVector || !ctrl.GlobalEnable() {
		return NoVector
	}

	for _, v := range vectorTable {
		if ctrl.pending[v] {
			ctrl.pending[v] = false
			ctrl.inService = v
			ctrl.core.Interrupt(v.HandlerAddress())
			return v
		}
	}

	return NoVector
}

// AcknowledgeReturn clears the in-service state. Called when the CPU core
// signals a return-from-interrupt.
func (ctrl *Controller) AcknowledgeReturn() {
	ctrl.inService = NoVector
}

// Reset returns the controller to its power-on state.
func (ctrl *Controller) Reset() {
	for v := range ctrl.pending {
		ctrl.pending[v] = false
	}
	ctrl.inService = NoVector
}

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

// Package peripherals defines the device interface implemented by the
// decoders in the sub-packages and the registry that owns plugged devices.
//
// The registry is also where the fast-forward mechanism learns whether a
// timing-sensitive device is currently plugged. A device that decodes
// register-level edges (the display decoder) cannot survive bulk time
// jumps; a device that only reads register values (the servo) can. Each
// device declares which kind it is through the TimingSensitive() method.
package peripherals

import (
	"github.com/hexbench/breadbox/curated"
)

// Pin names a single electrical pin: a port register address and a bit
// position within it.
type Pin struct {
	Port uint16
	Bit  int
}

// Device is the interface implemented by every peripheral decoder.
type Device interface {
	// ID identifies the device instance in logs
	ID() string

	// TimingSensitive returns true if the device depends on register-level
	// edge timing and therefore cannot tolerate fast-forwarded time
	TimingSensitive() bool

	// Unplug releases the device's observer subscriptions
	Unplug()

	// Reset returns the device to its just-registered state
	Reset()
}

// Actuator is implemented by devices with time-stepped physics. StepMotion
// is driven by the animation cadence, not the CPU step cadence.
type Actuator interface {
	Device
	StepMotion()
}

// Handle identifies a plugged device.
type Handle int

// Registry owns the set of plugged devices.
type Registry struct {
	devices map[Handle]Device
	next    Handle

	// notified whenever the timing-sensitivity survey changes
	onSensitivity func(bool)
	sensitive     bool
}

// NewRegistry is the preferred method of initialisation for the Registry
// type.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[Handle]Device),
	}
}

// SetSensitivityListener registers the function notified when the
// any-timing-sensitive-device survey changes. The listener is called
// immediately with the current survey.
func (reg *Registry) SetSensitivityListener(f func(bool)) {
	reg.onSensitivity = f
	if f != nil {
		f(reg.sensitive)
	}
}

// Plug adds a device to the registry and returns its handle.
func (reg *Registry) Plug(dev Device) Handle {
	reg.next++
	reg.devices[reg.next] = dev
	reg.survey()
	return reg.next
}

// Unplug removes a device, releasing its subscriptions.
func (reg *Registry) Unplug(handle Handle) error {
	dev, ok := reg.devices[handle]
	if !ok {
		return curated.Errorf("peripherals: unplug of unknown handle %d", int(handle))
	}
	dev.Unplug()
	delete(reg.devices, handle)
	reg.survey()
	return nil
}

// Device returns the device for a handle.
func (reg *Registry) Device(handle Handle) (Device, bool) {
	dev, ok := reg.devices[handle]
	return dev, ok
}

// Each calls f for every plugged device.
func (reg *Registry) Each(f func(Device)) {
	for _, dev := range reg.devices {
		f(dev)
	}
}

// TimingSensitive returns true if any plugged device is timing sensitive.
func (reg *Registry) TimingSensitive() bool {
	return reg.sensitive
}

// StepMotion drives the physics of every plugged actuator.
func (reg *Registry) StepMotion() {
	for _, dev := range reg.devices {
		if act, ok := dev.(Actuator); ok {
			act.StepMotion()
		}
	}
}

// Reset every plugged device.
func (reg *Registry) Reset() {
	for _, dev := range reg.devices {
		dev.Reset()
	}
}

func (reg *Registry) survey() {
	s := false
	for _, dev := range reg.devices {
		if dev.TimingSensitive() {
			s = true
			break
		}
	}
	if s != reg.sensitive {
		reg.sensitive = s
		if reg.onSensitivity != nil {
			reg.onSensitivity(s)
		}
	}
}

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

// Package servo converts a timer compare value into a hobby-servo target
// angle and moves a modelled actuator toward it at a bounded angular rate.
//
// Two strictly separated code paths mutate the servo state. The pulse
// decode path runs on the CPU step cadence (through the observer bridge)
// and only ever sets the target angle. The motion path runs on the
// animation cadence and is the only writer of the current angle. The
// separation is what makes the motion physically plausible: a decoded
// pulse can never teleport the arm.
//
// Both paths read time exclusively from the board's TimeSource.
package servo

import (
	"fmt"
	"math"

	"github.com/hexbench/breadbox/curated"
	"github.com/hexbench/breadbox/hardware/clocks"
	"github.com/hexbench/breadbox/hardware/observer"
	"github.com/hexbench/breadbox/logger"
	"github.com/hexbench/breadbox/peripherals"
)

// pulse width plausibility range and angle reference points, in
// microseconds. widths outside the range are rejected outright, never
// clamped: the floor sits well above the sub-750µs glitch widths that a
// misprogrammed compare register produces.
const (
	minPlausiblePulse = 750
	maxPlausiblePulse = 2500
	pulseAtZero       = 1000
	pulseAtFull       = 2000
)

// full angular range of the modelled servo, in degrees.
const fullRange = 180.0

// Config describes a servo device. The zero value is completed with
// defaults by NewServo; only the register wiring is mandatory.
type Config struct {
	// informational: the pin the PWM signal arrives on
	SignalPin peripherals.Pin

	// the compare register pair encoding the pulse width
	CompareLow  uint16
	CompareHigh uint16

	// the period reference (top value) of the owning timer
	Top func() uint16

	// PWM period. defaults to 20000, the common 50Hz frame
	PeriodMicros int64

	// angular speed limit. defaults to 500 degrees per second
	SpeedDegPerSec float64

	// error below which the arm is considered at target. defaults to 1
	DeadbandDeg float64

	// torque model. a zero MaxTorque disables the model
	MaxTorqueKgCm float64
	LoadWeightKg  float64
	ArmLengthCm   float64
}

// Pulse is the metadata of the most recently observed pulse decode.
type Pulse struct {
	WidthMicros  int64
	PeriodMicros int64
	Valid        bool
	AtMicros     int64
}

// SubscriptionHandle identifies an angle-change subscription.
type SubscriptionHandle int

// angle changes below this threshold do not notify subscribers, to avoid
// flooding them on every motion tick.
const notifyThreshold = 0.5

// Servo is the PWM-driven servo motion engine.
type Servo struct {
	env logger.Permission
	id  string
	brg *observer.Bridge
	clk *clocks.TimeSource
	cfg Config

	watch observer.Handle

	currentAngle float64
	targetAngle  float64
	isStalled    bool
	atTarget     bool

	lastUpdateMicros int64
	lastPulse        Pulse

	subs         map[SubscriptionHandle]func(float64)
	nextSub      SubscriptionHandle
	lastNotified float64
}

// NewServo is the preferred method of initialisation for the Servo type.
// The device subscribes to the observer bridge immediately.
func NewServo(env logger.Permission, id string, brg *observer.Bridge, clk *clocks.TimeSource, cfg Config) (*Servo, error) {
	if cfg.Top == nil {
		return nil, curated.Errorf("servo: %s: no period reference wired", id)
	}
	if cfg.PeriodMicros == 0 {
		cfg.PeriodMicros = 20000
	}
	if cfg.SpeedDegPerSec == 0 {
		cfg.SpeedDegPerSec = 500
	}
	if cfg.DeadbandDeg == 0 {
		cfg.DeadbandDeg = 1
	}

	srv := &Servo{
		env:  env,
		id:   id,
		brg:  brg,
		clk:  clk,
		cfg:  cfg,
		subs: make(map[SubscriptionHandle]func(float64)),
	}
	srv.watch = brg.WatchPair(cfg.CompareLow, cfg.CompareHigh, srv.decode)

	return srv, nil
}

// ID implements the peripherals.Device interface.
func (srv *Servo) ID() string {
	return srv.id
}

// TimingSensitive implements the peripherals.Device interface. The servo
// depends only on register values, never on edge spacing, so fast-forwarded
// time does not disturb it.
func (srv *Servo) TimingSensitive() bool {
	return false
}

// Unplug implements the peripherals.Device interface.
func (srv *Servo) Unplug() {
	srv.brg.Unsubscribe(srv.watch)
	srv.subs = make(map[SubscriptionHandle]func(float64))
}

// Reset implements the peripherals.Device interface.
func (srv *Servo) Reset() {
	srv.currentAngle = 0
	srv.targetAngle = 0
	srv.isStalled = false
	srv.atTarget = false
	srv.lastUpdateMicros = 0
	srv.lastPulse = Pulse{}
	srv.lastNotified = 0
}

func (srv *Servo) String() string {
	return fmt.Sprintf("%s: angle=%.1f target=%.1f stalled=%v", srv.id, srv.currentAngle, srv.targetAngle, srv.isStalled)
}

// CurrentAngle returns the position of the arm in degrees.
func (srv *Servo) CurrentAngle() float64 {
	return srv.currentAngle
}

// TargetAngle returns the angle most recently decoded from the PWM signal.
func (srv *Servo) TargetAngle() float64 {
	return srv.targetAngle
}

// Stalled returns true if the torque model has suppressed motion.
func (srv *Servo) Stalled() bool {
	return srv.isStalled
}

// LastPulse returns the metadata of the most recent pulse decode.
func (srv *Servo) LastPulse() Pulse {
	return srv.lastPulse
}

// SetLoad changes the load conditions of the torque model. A stalled servo
// resumes motion on the next StepMotion() if the new load is within the
// torque rating.
func (srv *Servo) SetLoad(weightKg float64, armLengthCm float64) {
	srv.cfg.LoadWeightKg = weightKg
	srv.cfg.ArmLengthCm = armLengthCm
}

// OnAngleChange subscribes to angle changes. Subscribers are notified when
// the arm has moved by at least half a degree since the last notification,
// or when it arrives at the target.
func (srv *Servo) OnAngleChange(f func(angle float64)) SubscriptionHandle {
	srv.nextSub++
	srv.subs[srv.nextSub] = f
	return srv.nextSub
}

// RemoveAngleChange removes an angle-change subscription.
func (srv *Servo) RemoveAngleChange(handle SubscriptionHandle) {
	delete(srv.subs, handle)
}

// decode is the observer bridge subscription callback. It derives the pulse
// width from the compare value and the period reference and sets the target
// angle. It never touches the current angle.
func (srv *Servo) decode(ev observer.ValueEvent) {
	top := srv.cfg.Top()
	if top == 0 {
		logger.Logf(srv.env, "servo", "%s: period reference is zero, pulse ignored", srv.id)
		return
	}

	width := int64(math.Round(float64(ev.New) / float64(top) * float64(srv.cfg.PeriodMicros)))

	if width < minPlausiblePulse || width > maxPlausiblePulse {
		logger.Logf(srv.env, "servo", "%s: implausible pulse width %dµs ignored", srv.id, width)
		srv.lastPulse = Pulse{
			WidthMicros:  width,
			PeriodMicros: srv.cfg.PeriodMicros,
			Valid:        false,
			AtMicros:     srv.clk.NowMicros(),
		}
		return
	}

	angle := float64(width-pulseAtZero) / float64(pulseAtFull-pulseAtZero) * fullRange
	if angle < 0 {
		angle = 0
	} else if angle > fullRange {
		angle = fullRange
	}

	srv.targetAngle = angle
	srv.atTarget = false
	srv.lastPulse = Pulse{
		WidthMicros:  width,
		PeriodMicros: srv.cfg.PeriodMicros,
		Valid:        true,
		AtMicros:     srv.clk.NowMicros(),
	}
}

// StepMotion implements the peripherals.Actuator interface. It moves the
// arm toward the target angle at the configured speed limit and is the only
// code path that writes the current angle.
func (srv *Servo) StepMotion() {
	now := srv.clk.NowMicros()
	if srv.lastUpdateMicros == 0 {
		srv.lastUpdateMicros = now
		return
	}
	elapsed := float64(now-srv.lastUpdateMicros) / 1e6
	srv.lastUpdateMicros = now
	if elapsed <= 0 {
		return
	}

	// static holding-torque check
	if srv.cfg.MaxTorqueKgCm > 0 {
		required := srv.cfg.LoadWeightKg * srv.cfg.ArmLengthCm
		if required > srv.cfg.MaxTorqueKgCm {
			if !srv.isStalled {
				srv.isStalled = true
				logger.Logf(srv.env, "servo", "%s: stalled (%.2fkg·cm load, %.2fkg·cm rated)", srv.id, required, srv.cfg.MaxTorqueKgCm)
			}
			return
		}
		if srv.isStalled {
			srv.isStalled = false
			logger.Logf(srv.env, "servo", "%s: stall cleared", srv.id)
		}
	}

	diff := srv.targetAngle - srv.currentAngle
	if math.Abs(diff) < srv.cfg.DeadbandDeg {
		// at target. notify arrival once
		if !srv.atTarget {
			srv.atTarget = true
			srv.notify(true)
		}
		return
	}

	step := srv.cfg.SpeedDegPerSec * elapsed
	if step >= math.Abs(diff) {
		srv.currentAngle = srv.targetAngle
	} else if diff > 0 {
		srv.currentAngle += step
	} else {
		srv.currentAngle -= step
	}

	if srv.currentAngle < 0 {
		srv.currentAngle = 0
	} else if srv.currentAngle > fullRange {
		srv.currentAngle = fullRange
	}

	srv.notify(false)
}

func (srv *Servo) notify(arrived bool) {
	if len(srv.subs) == 0 {
		return
	}
	if !arrived && math.Abs(srv.currentAngle-srv.lastNotified) < notifyThreshold {
		return
	}
	srv.lastNotified = srv.currentAngle
	for _, f := range srv.subs {
		f(srv.currentAngle)
	}
}

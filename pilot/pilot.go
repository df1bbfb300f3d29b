// Copyright 2019 Brian Starkey <stark3y@gmail.com>

// Package pilot runs the gyro-stabilised maneuvers: in-place turns,
// timed straight drives and corrected strafes, built on the base's
// tank primitives and the heading tracker.
package pilot

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/usedbytes/skybot/gyro"
)

// Driver is the slice of the platform the maneuvers need.
type Driver interface {
	Stop()
	TurnClockwise(power float64)
	TurnCounterClockwise(power float64)
	TankDrive(left, right float64)
	TankStrafe(left, right, correction float64)
}

// State is a per-control-tick snapshot, handed to the observer while a
// maneuver runs (the main loop is blocked for the duration, so this is
// how telemetry and the flight recorder stay fed).
type State struct {
	Maneuver   string
	Heading    float64
	Target     float64
	Correction float64
	Left       float64
	Right      float64
}

const DefaultGain = 0.1

type Pilot struct {
	driver  Driver
	tracker *gyro.Tracker

	mu   sync.Mutex
	gain float64

	tick    time.Duration
	settle  time.Duration
	observe func(State)
}

func New(d Driver, t *gyro.Tracker) *Pilot {
	return &Pilot{
		driver:  d,
		tracker: t,
		gain:    DefaultGain,
		tick:    10 * time.Millisecond,
		settle:  500 * time.Millisecond,
	}
}

// SetGain replaces the proportional gain. May be called between (or
// during) maneuvers, from any goroutine.
func (p *Pilot) SetGain(gain float64) {
	p.mu.Lock()
	p.gain = gain
	p.mu.Unlock()
}

func (p *Pilot) Gain() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.gain
}

// SetTimings adjusts the control tick and the post-maneuver settle
// wait. Call before any maneuvers run.
func (p *Pilot) SetTimings(tick, settle time.Duration) {
	p.tick = tick
	p.settle = settle
}

// Observe registers a function called once per control tick during
// maneuvers. Call before any maneuvers run.
func (p *Pilot) Observe(fn func(State)) {
	p.observe = fn
}

func (p *Pilot) report(s State) {
	if p.observe != nil {
		p.observe(s)
	}
}

// ResetHeading re-zeroes the tracker on the current attitude, for
// callers running their own outer loop around Strafe.
func (p *Pilot) ResetHeading() error {
	return p.tracker.Reset()
}

// Correction samples the tracker and returns the steering term for the
// accumulated heading error.
func (p *Pilot) Correction() (float64, error) {
	heading, err := p.tracker.Sample()
	if err != nil {
		return 0, err
	}

	return gyro.Correction(heading, p.Gain()), nil
}

// stopAndSettle is the tail of every maneuver: kill the motors, wait
// out the chassis rocking on its rollers, then re-zero the tracker so
// the next maneuver starts clean. Runs on cancellation too.
func (p *Pilot) stopAndSettle() {
	p.driver.Stop()
	time.Sleep(p.settle)

	if err := p.tracker.Reset(); err != nil {
		log.Println("pilot: reset after settle:", err)
	}
}

// Turn rotates in place by degrees (positive counterclockwise) at the
// given power, blocking until the gyro reports the target reached or
// ctx is cancelled. Landing exactly on the target counts as reached.
// A cancelled turn still stops and settles, and returns ctx.Err().
func (p *Pilot) Turn(ctx context.Context, degrees, power float64) error {
	if degrees < -180 || degrees > 180 {
		return fmt.Errorf("pilot: turn target %v out of range [-180, 180]", degrees)
	}
	if degrees == 0 {
		return nil
	}

	if err := p.tracker.Reset(); err != nil {
		return err
	}

	var left, right float64
	if degrees < 0 {
		left, right = -power, power
		p.driver.TurnClockwise(power)
	} else {
		left, right = power, -power
		p.driver.TurnCounterClockwise(power)
	}

	for ctx.Err() == nil {
		heading, err := p.tracker.Sample()
		if err != nil {
			log.Println("pilot: turn sample:", err)
			time.Sleep(p.tick)
			continue
		}

		p.report(State{
			Maneuver: "turn",
			Heading:  heading,
			Target:   degrees,
			Left:     left,
			Right:    right,
		})

		if degrees < 0 && heading <= degrees {
			break
		}
		if degrees > 0 && heading >= degrees {
			break
		}

		time.Sleep(p.tick)
	}

	p.stopAndSettle()

	return ctx.Err()
}

// DriveStraight drives both sides at power for the given duration,
// steering against accumulated heading error. The correction is not
// limited here; wheel commands saturate at the wire encoding.
func (p *Pilot) DriveStraight(ctx context.Context, power float64, d time.Duration) error {
	if err := p.tracker.Reset(); err != nil {
		return err
	}

	start := time.Now()
	for ctx.Err() == nil && time.Since(start) < d {
		heading, err := p.tracker.Sample()
		if err != nil {
			log.Println("pilot: drive sample:", err)
			time.Sleep(p.tick)
			continue
		}

		corr := gyro.Correction(heading, p.Gain())
		left, right := power+corr, power-corr
		p.driver.TankDrive(left, right)

		p.report(State{
			Maneuver:   "drive",
			Heading:    heading,
			Correction: corr,
			Left:       left,
			Right:      right,
		})

		time.Sleep(p.tick)
	}

	p.stopAndSettle()

	return ctx.Err()
}

// Strafe issues a single corrected strafe toward direction (radians,
// 0 = forward, +pi/2 = left). It neither blocks nor terminates; the
// outer loop re-issues it per tick and decides when to stop.
func (p *Pilot) Strafe(direction, power, correction float64) {
	d := direction + math.Pi/4
	left := math.Cos(d) * power
	right := math.Sin(d) * power

	p.driver.TankStrafe(left, right, correction)

	p.report(State{
		Maneuver:   "strafe",
		Heading:    p.tracker.Heading(),
		Correction: correction,
		Left:       left,
		Right:      right,
	})
}

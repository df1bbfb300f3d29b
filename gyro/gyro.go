// Copyright 2019 Brian Starkey <stark3y@gmail.com>

// Package gyro turns absolute orientation fixes into a continuous
// relative heading, and derives the steering correction from it.
package gyro

import (
	"github.com/usedbytes/skybot/base/imu"
)

// Tracker accumulates the change in heading since the last Reset,
// unwrapping the source's (-180, 180] discontinuity so that turns past
// half a revolution, or several full ones, keep counting. If the robot
// turns more than 180 degrees between samples the unwrap picks the
// wrong direction; sample faster than the robot can spin.
type Tracker struct {
	src imu.Source

	reference imu.Reading
	last      imu.Reading
	heading   float64
}

func NewTracker(src imu.Source) *Tracker {
	return &Tracker{src: src}
}

// Reset re-zeroes the tracker on the current orientation. Called
// before a maneuver begins, and again once it has settled.
func (t *Tracker) Reset() error {
	r, err := t.src.Orientation()
	if err != nil {
		return err
	}

	t.reference = r
	t.last = r
	t.heading = 0

	return nil
}

// Sample takes a fresh fix and returns the accumulated heading in
// degrees, positive counterclockwise. On a read error the state is
// left alone and the last good heading comes back with the error.
func (t *Tracker) Sample() (float64, error) {
	r, err := t.src.Orientation()
	if err != nil {
		return t.heading, err
	}

	delta := r.Heading - t.last.Heading
	if delta < -180 {
		delta += 360
	} else if delta > 180 {
		delta -= 360
	}

	t.heading += delta
	t.last = r

	return t.heading, nil
}

// Heading returns the accumulated heading without sampling.
func (t *Tracker) Heading() float64 {
	return t.heading
}

// Reference returns the fix the tracker was last reset on.
func (t *Tracker) Reference() imu.Reading {
	return t.reference
}

// Correction is the steering term for a heading error: zero when on
// course, otherwise proportional and opposing. A robot drifted
// counterclockwise (positive heading) gets a negative correction.
func Correction(heading, gain float64) float64 {
	if heading == 0 {
		return 0
	}

	return -heading * gain
}

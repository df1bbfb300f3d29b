// Copyright 2019 Brian Starkey <stark3y@gmail.com>
package imu

import (
	"fmt"
	"time"

	"github.com/usedbytes/bno055"
	"periph.io/x/periph/conn/i2c"
)

// Reading is a single orientation fix, in degrees. Heading is
// normalised to (-180, 180], positive counterclockwise.
type Reading struct {
	Heading float64
	Roll    float64
	Pitch   float64
}

// Source produces a fresh fix on every call. Implementations must not
// cache; the maneuver loops rely on each sample being current.
type Source interface {
	Orientation() (Reading, error)
}

type Dev struct {
	imu *bno055.Dev
}

func NewDev(b i2c.Bus, addr uint8) (*Dev, error) {
	imu, err := bno055.NewI2C(b, addr)
	if err != nil {
		return nil, err
	}

	if err := imu.SetUseExternalCrystal(true); err != nil {
		return nil, fmt.Errorf("IMU: SetUseExternalCrystal: %v", err)
	}

	return &Dev{imu: imu}, nil
}

// normalizeHeading folds the sensor's euler heading (0..360, clockwise
// positive) into (-180, 180] counterclockwise positive.
func normalizeHeading(h float64) float64 {
	h = -h
	for h <= -180 {
		h += 360
	}
	for h > 180 {
		h -= 360
	}

	if h == 0 {
		return 0
	}

	return h
}

func (d *Dev) Orientation() (Reading, error) {
	vec, err := d.imu.GetVector(bno055.VECTOR_EULER)
	if err != nil {
		return Reading{}, err
	}
	if len(vec) < 3 {
		return Reading{}, fmt.Errorf("IMU: short euler vector (%d)", len(vec))
	}

	return Reading{
		Heading: normalizeHeading(vec[0]),
		Roll:    vec[1],
		Pitch:   vec[2],
	}, nil
}

// WaitReady polls until the fusion delivers a run of clean reads, or
// the deadline passes. The drive code never retries a sick IMU at run
// time, so a failure here has to abort setup.
func (d *Dev) WaitReady(timeout time.Duration) error {
	const want = 5

	deadline := time.Now().Add(timeout)

	for good := 0; good < want; {
		if time.Now().After(deadline) {
			return fmt.Errorf("IMU: not ready after %v", timeout)
		}

		if _, err := d.Orientation(); err != nil {
			good = 0
		} else {
			good++
		}

		time.Sleep(50 * time.Millisecond)
	}

	return nil
}

// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package model

import (
	"math"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/base/motor"
)

type Coord struct {
	X, Y float64
}

func (c Coord) Add(b Coord) Coord {
	return Coord{c.X + b.X, c.Y + b.Y}
}

func (c Coord) Sub(b Coord) Coord {
	return Coord{c.X - b.X, c.Y - b.Y}
}

// Model dead-reckons a world pose from the wheel odometers and the IMU
// heading. Mecanum rollers slip, so the position drifts over a run;
// treat it as a trend for the viewer, not a survey.
type Model struct {
	platform *base.Platform

	pos     Coord
	heading float64
	prev    [motor.NumWheels]float64
}

func NewModel(p *base.Platform) *Model {
	m := &Model{platform: p}
	m.Reset()

	return m
}

func (m *Model) Reset() {
	m.pos = Coord{}
	m.heading = 0
	m.prev = m.platform.Motors.Distances()
}

// Tick folds the wheel movement since the last tick into the pose.
// headingDeg is the robot's current heading from the IMU, degrees
// counterclockwise; X runs along the heading the model was reset on.
func (m *Model) Tick(headingDeg float64) {
	m.heading = headingDeg * math.Pi / 180

	dist := m.platform.Motors.Distances()
	var delta [motor.NumWheels]float64
	for i := range dist {
		delta[i] = dist[i] - m.prev[i]
	}
	m.prev = dist

	// Mecanum forward kinematics, body frame: x forward, y to the
	// robot's left.
	dx := (delta[motor.FrontLeft] + delta[motor.FrontRight] +
		delta[motor.BackLeft] + delta[motor.BackRight]) / 4
	dy := (-delta[motor.FrontLeft] + delta[motor.FrontRight] +
		delta[motor.BackLeft] - delta[motor.BackRight]) / 4

	sin, cos := math.Sincos(m.heading)
	m.pos.X += dx*cos - dy*sin
	m.pos.Y += dx*sin + dy*cos
}

// Pose returns the world position (mm) and heading (radians).
func (m *Model) Pose() (Coord, float64) {
	return m.pos, m.heading
}

// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package rc

import (
	"image/color"
	"math"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/interface/input"
	"github.com/usedbytes/skybot/pilot"
)

const TaskName = "rc"

const deadzone = 0.05

// Task is free driving: the left stick translates the chassis in any
// direction (the strafe vector handles forwards too), the right stick
// spins it, Triangle works the claw. Also the idle task, so the menu
// rides on top of its ticks.
type Task struct {
	platform *base.Platform
	pilot    *pilot.Pilot
	input    *input.Collector

	maxPower float64
}

func NewTask(ip *input.Collector, pl *base.Platform, pi *pilot.Pilot) *Task {
	return &Task{
		platform: pl,
		pilot:    pi,
		input:    ip,
		maxPower: 1.0,
	}
}

func (t *Task) Tick(buttons input.ButtonState) {
	if buttons[input.Triangle] == input.Pressed {
		buttons[input.Triangle] = input.None
		t.platform.ToggleGrab()
	}

	lx, ly := t.input.LeftStick()
	rx, _ := t.input.RightStick()

	spin := float64(rx)
	mag := math.Hypot(float64(lx), float64(ly))

	switch {
	case math.Abs(spin) > deadzone && math.Abs(spin) >= mag:
		if spin > 0 {
			t.platform.TurnClockwise(spin * t.maxPower)
		} else {
			t.platform.TurnCounterClockwise(-spin * t.maxPower)
		}

	case mag > deadzone:
		// Stick angle to travel direction: x right is a negative
		// (clockwise) heading.
		dir := math.Atan2(float64(-lx), float64(ly))
		t.pilot.Strafe(dir, mag*t.maxPower, 0)

	default:
		t.platform.Stop()
	}
}

func (t *Task) Color() color.Color {
	return color.NRGBA{0x00, 0xff, 0x00, 0x80}
}

// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package square

import (
	"context"
	"image/color"
	"log"
	"time"

	"github.com/usedbytes/skybot/interface/input"
	"github.com/usedbytes/skybot/pilot"
)

const TaskName = "square"

// Task drives a square: four timed legs, four 90 degree lefts, all
// through the gyro maneuvers. Each tick runs one maneuver to
// completion, so the loop blocks for a leg at a time; Cross toggles
// the run between maneuvers, PS aborts mid-maneuver via the deadman.
type Task struct {
	pilot *pilot.Pilot
	input *input.Collector
	base  context.Context

	runCtx  context.Context
	stop    context.CancelFunc
	running bool
	turning bool
	leg     int

	power   float64
	legTime time.Duration
}

func NewTask(ctx context.Context, ip *input.Collector, pi *pilot.Pilot) *Task {
	return &Task{
		pilot:   pi,
		input:   ip,
		base:    ctx,
		power:   0.5,
		legTime: 1500 * time.Millisecond,
	}
}

func (t *Task) Enter() {
	t.running = false
}

func (t *Task) Exit() {
	t.halt()
}

func (t *Task) start() {
	t.runCtx, t.stop = t.input.Deadman(t.base)
	t.running = true
	t.turning = false
	t.leg = 0
}

func (t *Task) halt() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.running = false
}

func (t *Task) Tick(buttons input.ButtonState) {
	if buttons[input.Cross] == input.Pressed {
		buttons[input.Cross] = input.None
		if t.running {
			t.halt()
		} else {
			t.start()
		}

		return
	}

	if !t.running {
		return
	}

	var err error
	if t.turning {
		err = t.pilot.Turn(t.runCtx, 90, t.power)
		t.turning = false
		t.leg++
		if t.leg >= 4 {
			t.halt()
		}
	} else {
		err = t.pilot.DriveStraight(t.runCtx, t.power, t.legTime)
		t.turning = true
	}

	if err != nil {
		log.Println("square:", err)
		t.halt()
	}
}

func (t *Task) Color() color.Color {
	return color.NRGBA{0xf4, 0x42, 0x86, 0x80}
}

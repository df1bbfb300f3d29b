// Copyright 2019 Brian Starkey <stark3y@gmail.com>
package approach

import (
	"image"
	"image/color"
	"log"
	"math"
	"time"

	"github.com/felixge/pidctrl"
	"github.com/usedbytes/picamera"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/config"
	"github.com/usedbytes/skybot/cv"
	"github.com/usedbytes/skybot/interface/input"
	"github.com/usedbytes/skybot/pilot"
)

const TaskName = "approach"

// Frames-in-a-row inside the centre band before we call it done.
const settleFrames = 3

// Task slides the robot sideways until the target sits on the camera's
// midline, nose held straight by the gyro. Vision picks the side, the
// PID picks the speed from the pixel offset, the tracker's correction
// rides on every strafe. If the target drops out of frame the task
// spins gently toward where it last was.
type Task struct {
	platform *base.Platform
	pilot    *pilot.Pilot

	window    cv.Window
	minPixels int
	band      int

	pid   *pidctrl.PIDController
	seek  float64

	running  bool
	seeking  bool
	lastSide cv.Side
	lastTime time.Time
	settled  int
}

func NewTask(cfg *config.Config, pl *base.Platform, pi *pilot.Pilot) *Task {
	pid := pidctrl.NewPIDController(cfg.Approach.KP, cfg.Approach.KI, cfg.Approach.KD)
	pid.SetOutputLimits(-cfg.Approach.Power, cfg.Approach.Power)
	pid.Set(0)

	return &Task{
		platform: pl,
		pilot:    pi,
		window: cv.Window{
			Cb:   uint8(cfg.Target.Cb),
			Cr:   uint8(cfg.Target.Cr),
			Span: uint8(cfg.Target.Window),
		},
		minPixels: cfg.Target.MinPixels,
		band:      cfg.Target.Band,
		pid:       pid,
		seek:      cfg.Approach.Seek,
		lastSide:  cv.Right,
	}
}

func (t *Task) Enter() {
	t.platform.DisableCamera()
	t.platform.SetCameraCrop(picamera.Rect(0.0, 0.0, 1.0, 1.0))
	t.platform.SetCameraFormat(picamera.FORMAT_I420)
	t.platform.Camera.SetOutSize(64, 48)
	t.platform.EnableCamera()

	t.running = false
	t.seeking = false
	t.lastTime = time.Time{}
}

// Exit leaves the camera running; the main loop streams frames to
// telemetry whichever task is up.
func (t *Task) Exit() {
	t.halt()
}

func (t *Task) start() {
	if err := t.pilot.ResetHeading(); err != nil {
		log.Println("approach:", err)
		return
	}

	t.running = true
	t.seeking = false
	t.settled = 0
}

func (t *Task) halt() {
	t.platform.Stop()
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

	frame, frameTime := t.platform.GetFrame()
	if frame == nil || frameTime == t.lastTime {
		// The last strafe command stands until a fresh frame says
		// otherwise.
		return
	}
	t.lastTime = frameTime

	var img image.Image
	switch v := frame.(type) {
	case *picamera.YCbCrFrame:
		img = &v.YCbCr
	default:
		img = frame
	}

	blob, found := cv.FindTarget(img, t.window, t.minPixels)
	if !found {
		if t.lastSide == cv.Left {
			t.platform.TurnCounterClockwise(t.seek)
		} else {
			t.platform.TurnClockwise(t.seek)
		}
		t.seeking = true

		return
	}

	if t.seeking {
		// Reacquired: hold this attitude for the run-in.
		t.seeking = false
		if err := t.pilot.ResetHeading(); err != nil {
			log.Println("approach:", err)
			return
		}
	}

	width := img.Bounds().Dx()

	side := cv.Pick(blob.X, width, t.band)
	if side == cv.Centered {
		t.platform.Stop()
		t.settled++
		if t.settled >= settleFrames {
			log.Println("approach: centered on target")
			t.running = false
		}

		return
	}
	t.settled = 0
	t.lastSide = side

	// Target right of the midline: positive offset, negative PID
	// output, strafe direction clockwise of forward. And mirrored
	// for the left.
	out := t.pid.Update(cv.Offset(blob.X, width))
	dir := math.Copysign(math.Pi/2, out)

	corr, err := t.pilot.Correction()
	if err != nil {
		log.Println("approach:", err)
		return
	}

	t.pilot.Strafe(dir, math.Abs(out), corr)
}

func (t *Task) Color() color.Color {
	return color.NRGBA{0x00, 0x66, 0xff, 0x80}
}

// Copyright 2019 Brian Starkey <stark3y@gmail.com>
package pilot

import (
	"context"
	"math"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/usedbytes/skybot/base/imu"
	"github.com/usedbytes/skybot/gyro"
)

// fakeSource plays back headings, then repeats the last one forever.
type fakeSource struct {
	readings []float64
	idx      int
}

func (s *fakeSource) Orientation() (imu.Reading, error) {
	r := imu.Reading{Heading: s.readings[s.idx]}
	if s.idx < len(s.readings)-1 {
		s.idx++
	}

	return r, nil
}

type call struct {
	name string
	args []float64
}

type fakeDriver struct {
	calls []call
}

func (d *fakeDriver) record(name string, args ...float64) {
	d.calls = append(d.calls, call{name, args})
}

func (d *fakeDriver) Stop()                          { d.record("stop") }
func (d *fakeDriver) TurnClockwise(p float64)        { d.record("cw", p) }
func (d *fakeDriver) TurnCounterClockwise(p float64) { d.record("ccw", p) }
func (d *fakeDriver) TankDrive(l, r float64)         { d.record("drive", l, r) }
func (d *fakeDriver) TankStrafe(l, r, c float64)     { d.record("strafe", l, r, c) }

func (d *fakeDriver) last() call {
	return d.calls[len(d.calls)-1]
}

func (d *fakeDriver) named(name string) []call {
	var out []call
	for _, c := range d.calls {
		if c.name == name {
			out = append(out, c)
		}
	}

	return out
}

// newTestPilot scripts the gyro with the given headings. The first one
// is consumed by the Reset at the start of a maneuver.
func newTestPilot(d *fakeDriver, headings ...float64) *Pilot {
	tr := gyro.NewTracker(&fakeSource{readings: headings})
	p := New(d, tr)
	p.SetTimings(time.Millisecond, 0)

	return p
}

func TestTurnClockwiseExactLanding(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0, -30, -60, -90)

	var states []State
	p.Observe(func(s State) { states = append(states, s) })

	err := p.Turn(context.Background(), -90, 0.5)
	test.That(t, err, test.ShouldBeNil)

	cw := d.named("cw")
	test.That(t, len(cw), test.ShouldEqual, 1)
	test.That(t, cw[0].args[0], test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, len(d.named("ccw")), test.ShouldEqual, 0)
	test.That(t, d.last().name, test.ShouldEqual, "stop")

	// Landing exactly on target ends the turn on that tick.
	test.That(t, len(states), test.ShouldEqual, 3)
	final := states[len(states)-1]
	test.That(t, final.Maneuver, test.ShouldEqual, "turn")
	test.That(t, final.Heading, test.ShouldAlmostEqual, -90, 1e-9)
	test.That(t, final.Target, test.ShouldAlmostEqual, -90, 1e-9)
}

func TestTurnClockwiseOvershoot(t *testing.T) {
	// The gyro blows past the target between samples; the first
	// reading beyond it must still end the turn.
	d := &fakeDriver{}
	p := newTestPilot(d, 0, -50, -91)

	var states []State
	p.Observe(func(s State) { states = append(states, s) })

	err := p.Turn(context.Background(), -90, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.last().name, test.ShouldEqual, "stop")

	test.That(t, len(states), test.ShouldEqual, 2)
	test.That(t, states[len(states)-1].Heading, test.ShouldAlmostEqual, -91, 1e-9)
}

func TestTurnCounterClockwise(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0, 45, 95)

	err := p.Turn(context.Background(), 90, 0.4)
	test.That(t, err, test.ShouldBeNil)

	ccw := d.named("ccw")
	test.That(t, len(ccw), test.ShouldEqual, 1)
	test.That(t, ccw[0].args[0], test.ShouldAlmostEqual, 0.4, 1e-9)
	test.That(t, len(d.named("cw")), test.ShouldEqual, 0)
	test.That(t, d.last().name, test.ShouldEqual, "stop")
}

func TestTurnZeroIsNoop(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0)

	err := p.Turn(context.Background(), 0, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(d.calls), test.ShouldEqual, 0)
}

func TestTurnTargetOutOfRange(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0)

	err := p.Turn(context.Background(), 181, 0.5)
	test.That(t, err, test.ShouldNotBeNil)

	err = p.Turn(context.Background(), -200.5, 0.5)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, len(d.calls), test.ShouldEqual, 0)
}

func TestTurnCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &fakeDriver{}
	p := newTestPilot(d, 0, -30)

	err := p.Turn(ctx, -90, 0.5)
	test.That(t, err, test.ShouldEqual, context.Canceled)

	// Cancellation still lands on a full stop.
	test.That(t, d.last().name, test.ShouldEqual, "stop")
}

func TestTurnCancelledMidway(t *testing.T) {
	// The gyro never reaches the target; cancellation is the only way
	// out.
	d := &fakeDriver{}
	p := newTestPilot(d, 0, -10, -20, -30)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	p.Observe(func(State) {
		n++
		if n == 3 {
			cancel()
		}
	})

	err := p.Turn(ctx, -90, 0.5)
	test.That(t, err, test.ShouldEqual, context.Canceled)
	test.That(t, d.last().name, test.ShouldEqual, "stop")
	test.That(t, n, test.ShouldBeGreaterThanOrEqualTo, 3)
}

func TestDriveStraightCorrection(t *testing.T) {
	// Constant 10 degree counterclockwise drift at the default gain:
	// the correction is -1, and it is deliberately not limited here.
	d := &fakeDriver{}
	p := newTestPilot(d, 0, 10)

	err := p.DriveStraight(context.Background(), 0.5, 5*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	drives := d.named("drive")
	test.That(t, len(drives), test.ShouldBeGreaterThan, 0)
	for _, c := range drives {
		test.That(t, c.args[0], test.ShouldAlmostEqual, -0.5, 1e-9)
		test.That(t, c.args[1], test.ShouldAlmostEqual, 1.5, 1e-9)
	}
	test.That(t, d.last().name, test.ShouldEqual, "stop")
}

func TestDriveStraightOnCourse(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0)

	err := p.DriveStraight(context.Background(), 0.4, 3*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	drives := d.named("drive")
	test.That(t, len(drives), test.ShouldBeGreaterThan, 0)
	for _, c := range drives {
		test.That(t, c.args[0], test.ShouldAlmostEqual, 0.4, 1e-9)
		test.That(t, c.args[1], test.ShouldAlmostEqual, 0.4, 1e-9)
	}
}

func TestDriveStraightGain(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0, 10)
	p.SetGain(0.2)

	err := p.DriveStraight(context.Background(), 0.5, 3*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	drives := d.named("drive")
	test.That(t, len(drives), test.ShouldBeGreaterThan, 0)
	test.That(t, drives[0].args[0], test.ShouldAlmostEqual, -1.5, 1e-9)
	test.That(t, drives[0].args[1], test.ShouldAlmostEqual, 2.5, 1e-9)
}

func TestDriveStraightZeroDuration(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0)

	err := p.DriveStraight(context.Background(), 0.5, 0)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, len(d.named("drive")), test.ShouldEqual, 0)
	test.That(t, d.last().name, test.ShouldEqual, "stop")
}

func TestStrafeVector(t *testing.T) {
	d := &fakeDriver{}
	p := newTestPilot(d, 0)

	p.Strafe(math.Pi/2, 0.3, 0.05)

	s := d.named("strafe")
	test.That(t, len(s), test.ShouldEqual, 1)

	want := math.Pi/2 + math.Pi/4
	test.That(t, s[0].args[0], test.ShouldAlmostEqual, math.Cos(want)*0.3, 1e-9)
	test.That(t, s[0].args[1], test.ShouldAlmostEqual, math.Sin(want)*0.3, 1e-9)
	test.That(t, s[0].args[2], test.ShouldAlmostEqual, 0.05, 1e-9)
}

func TestStrafeForward(t *testing.T) {
	// Straight ahead both diagonals pull the same.
	d := &fakeDriver{}
	p := newTestPilot(d, 0)

	p.Strafe(0, 0.5, 0)

	s := d.named("strafe")
	test.That(t, len(s), test.ShouldEqual, 1)
	test.That(t, s[0].args[0], test.ShouldAlmostEqual, s[0].args[1], 1e-9)
	test.That(t, s[0].args[0], test.ShouldAlmostEqual, math.Cos(math.Pi/4)*0.5, 1e-9)
}

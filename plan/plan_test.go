// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package plan

import (
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/interface/input"
	"github.com/usedbytes/skybot/interface/menu"
)

type fakeTask struct {
	name  string
	log   *[]string
	ticks int
}

func (f *fakeTask) Tick(buttons input.ButtonState) {
	f.ticks++
}

func (f *fakeTask) Color() color.Color {
	return color.NRGBA{0xff, 0x00, 0x00, 0xff}
}

type fakeEETask struct {
	fakeTask
}

func (f *fakeEETask) Enter() {
	*f.log = append(*f.log, "enter "+f.name)
}

func (f *fakeEETask) Exit() {
	*f.log = append(*f.log, "exit "+f.name)
}

func TestSetTaskUnknown(t *testing.T) {
	p := NewPlanner(&base.Platform{})

	err := p.SetTask("nope")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAddTaskDuplicate(t *testing.T) {
	p := NewPlanner(&base.Platform{})

	err := p.AddTask("idle", &fakeTask{name: "idle"}, menu.None)
	test.That(t, err, test.ShouldBeNil)

	err = p.AddTask("idle", &fakeTask{name: "idle"}, menu.North)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEnterExitOrder(t *testing.T) {
	p := NewPlanner(&base.Platform{})
	log := []string{}

	a := &fakeEETask{fakeTask{name: "a", log: &log}}
	b := &fakeEETask{fakeTask{name: "b", log: &log}}

	test.That(t, p.AddTask("idle", &fakeTask{name: "idle"}, menu.None), test.ShouldBeNil)
	test.That(t, p.AddTask("a", a, menu.East), test.ShouldBeNil)
	test.That(t, p.AddTask("b", b, menu.West), test.ShouldBeNil)

	test.That(t, p.SetTask("a"), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"enter a"})

	test.That(t, p.SetTask("b"), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"enter a", "exit a", "enter b"})
	test.That(t, p.CurrentName(), test.ShouldEqual, "b")
}

func TestMenuPicksFromIdle(t *testing.T) {
	p := NewPlanner(&base.Platform{})
	log := []string{}

	idle := &fakeTask{name: "idle"}
	task := &fakeEETask{fakeTask{name: "go", log: &log}}

	test.That(t, p.AddTask("idle", idle, menu.None), test.ShouldBeNil)
	test.That(t, p.AddTask("go", task, menu.South), test.ShouldBeNil)
	test.That(t, p.SetTask("idle"), test.ShouldBeNil)

	buttons := input.ButtonState{input.Cross: input.Held}
	p.Tick(buttons)

	// The pick swaps tasks mid-tick: the new task gets this tick, with
	// the trigger button already consumed.
	test.That(t, p.CurrentName(), test.ShouldEqual, "go")
	test.That(t, log, test.ShouldResemble, []string{"enter go"})
	test.That(t, task.ticks, test.ShouldEqual, 1)
	test.That(t, idle.ticks, test.ShouldEqual, 0)
	test.That(t, buttons[input.Cross], test.ShouldEqual, input.None)
}

func TestMenuGatedToIdle(t *testing.T) {
	p := NewPlanner(&base.Platform{})
	log := []string{}

	task := &fakeEETask{fakeTask{name: "go", log: &log}}
	other := &fakeEETask{fakeTask{name: "other", log: &log}}

	test.That(t, p.AddTask("idle", &fakeTask{name: "idle"}, menu.None), test.ShouldBeNil)
	test.That(t, p.AddTask("go", task, menu.South), test.ShouldBeNil)
	test.That(t, p.AddTask("other", other, menu.West), test.ShouldBeNil)
	test.That(t, p.SetTask("go"), test.ShouldBeNil)

	buttons := input.ButtonState{input.Square: input.Held}
	p.Tick(buttons)

	// Holding another task's button inside a running task must not
	// switch away.
	test.That(t, p.CurrentName(), test.ShouldEqual, "go")
	test.That(t, task.ticks, test.ShouldEqual, 1)
	test.That(t, buttons[input.Square], test.ShouldEqual, input.Held)
}

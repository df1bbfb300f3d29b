package menu

import (
	"image/color"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/interface/input"
)

// Direction places a task on the compass of face buttons: Triangle
// north, Circle east, Cross south, Square west.
type Direction int

const (
	None Direction = iota
	North
	East
	South
	West
)

var buttonFor = map[Direction]input.Button{
	North: input.Triangle,
	East:  input.Circle,
	South: input.Cross,
	West:  input.Square,
}

type Item struct {
	color color.Color
	pick  func()
}

type Menu struct {
	platform *base.Platform
	items    map[Direction]Item
}

func NewMenu(p *base.Platform) *Menu {
	return &Menu{
		platform: p,
		items:    make(map[Direction]Item),
	}
}

func (m *Menu) AddItem(dir Direction, c color.Color, pick func()) {
	m.items[dir] = Item{color: c, pick: pick}
}

// Tick fires an item when its face button has been held down. Only the
// idle task's ticks are routed here, so a press-and-hold inside any
// other task keeps its own meaning.
func (m *Menu) Tick(buttons input.ButtonState) {
	for dir, item := range m.items {
		btn := buttonFor[dir]
		if buttons[btn] != input.Held {
			continue
		}

		buttons[btn] = input.None
		m.platform.SetLEDColor(item.color)
		item.pick()

		return
	}
}

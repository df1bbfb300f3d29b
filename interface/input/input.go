package input

import (
	"context"
	"image/color"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gvalkov/golang-evdev"
	"github.com/usedbytes/input2"
	"github.com/usedbytes/input2/button"
	"github.com/usedbytes/input2/factory"
	"github.com/usedbytes/input2/gamepad/thumbstick"

	led "github.com/usedbytes/linux-led"
)

type Button int

const (
	Cross Button = iota
	Square
	Triangle
	Circle
	PS
	Share
	Options
	L1
	L2
	L3
	R1
	R2
	R3
)

type State int

const (
	None State = iota
	Pressed
	Held
)

type ButtonState map[Button]State

// Collector folds gamepad events into per-tick button edges (Pressed /
// Held, consumed on read) and cartesian stick positions. The PS button
// additionally latches a stop flag for the maneuver deadman, so a
// stop request can't be lost between reads.
type Collector struct {
	mu     sync.Mutex
	lx, ly float32
	rx, ry float32

	buttons ButtonState
	estop   bool
	leds    chan led.RGBLED
}

func NewCollector() *Collector {
	c := &Collector{
		buttons: make(ButtonState),
		leds:    make(chan led.RGBLED, 4),
	}

	stopChan := make(chan bool)

	go func() {
		sources := factory.Monitor()
		for s := range sources {
			log.Println("Source: ", s)
			conn := s.NewConnection()

			rgbled, ok := s.(led.RGBLED)
			if ok {
				rgbled.SetColor(color.NRGBA{0x00, 0xff, 0x00, 0xff})
				rgbled.SetTrigger(led.TriggerHeartbeat)

				select {
				case c.leds <- rgbled:
				default:
				}
			}

			btnMap := []buttonMap{
				{evdev.BTN_MODE, PS},
				{evdev.BTN_NORTH, Triangle},
				{evdev.BTN_EAST, Circle},
				{evdev.BTN_SOUTH, Cross},
				{evdev.BTN_WEST, Square},
				{evdev.BTN_SELECT, Share},
				{evdev.BTN_START, Options},
				{evdev.BTN_TL, L1},
				{evdev.BTN_TL2, L2},
				{evdev.BTN_THUMBL, L3},
				{evdev.BTN_TR, R1},
				{evdev.BTN_TR2, R2},
				{evdev.BTN_THUMBR, R3},
			}

			for _, b := range btnMap {
				button.MapButton(conn,
					&button.Button{
						Match:    input2.EventMatch{evdev.EV_KEY, b.scancode},
						HoldTime: (time.Millisecond * 1500),
						Keycode:  int(b.button),
					})
			}

			thumbstick.MapThumbstick(conn,
				&thumbstick.Thumbstick{
					X:     thumbstick.Axis{Code: evdev.ABS_X},
					Y:     thumbstick.Axis{Code: evdev.ABS_Y, Invert: true},
					Stick: thumbstick.Left,
					Algo:  thumbstick.CrossDeadzone{XDeadzone: 0.2, YDeadzone: 0.2},
				})
			thumbstick.MapThumbstick(conn,
				&thumbstick.Thumbstick{
					X:     thumbstick.Axis{Code: evdev.ABS_RX},
					Y:     thumbstick.Axis{Code: evdev.ABS_RY, Invert: true},
					Stick: thumbstick.Right,
					Algo:  thumbstick.CrossDeadzone{XDeadzone: 0.2, YDeadzone: 0.2},
				})

			sub := conn.Subscribe(stopChan)
			go c.handleEvents(sub)
		}
	}()

	return c
}

type buttonMap struct {
	scancode uint16
	button   Button
}

func (c *Collector) handleEvents(ch <-chan input2.InputEvent) {
	for ev := range ch {
		switch e := ev.(type) {
		case thumbstick.Event:
			// Theta is degrees clockwise from straight up.
			mag := float64(e.Arg)
			rad := float64(e.Theta) * math.Pi / 180
			x := float32(math.Sin(rad) * mag)
			y := float32(math.Cos(rad) * mag)

			c.mu.Lock()
			if e.Stick == 0 {
				c.lx, c.ly = x, y
			} else {
				c.rx, c.ry = x, y
			}
			c.mu.Unlock()

		case button.Event:
			c.mu.Lock()
			if e.Value == button.Pressed {
				c.buttons[Button(e.Keycode)] = Pressed
				if Button(e.Keycode) == PS {
					c.estop = true
				}
			} else if e.Value == button.Held {
				c.buttons[Button(e.Keycode)] = Held
			}
			c.mu.Unlock()
		}
	}
}

// LeftStick returns the left stick position, x positive right, y
// positive up, each in [-1, 1].
func (c *Collector) LeftStick() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lx, c.ly
}

func (c *Collector) RightStick() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rx, c.ry
}

// Buttons returns the edges collected since the last call, and clears
// them.
func (c *Collector) Buttons() ButtonState {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buttons
	c.buttons = make(ButtonState)

	return b
}

// Leds delivers the lamp on each newly connected gamepad, so the
// platform can drive it as a status indicator.
func (c *Collector) Leds() <-chan led.RGBLED {
	return c.leds
}

// TakePanic consumes the latched PS press, if there is one.
func (c *Collector) TakePanic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.estop
	c.estop = false

	return v
}

// Deadman derives a context that is cancelled as soon as PS is
// pressed. One maneuver run per call; cancel it when the run ends to
// free the watcher.
func (c *Collector) Deadman(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if c.TakePanic() {
					cancel()
					return
				}
			}
		}
	}()

	return ctx, cancel
}

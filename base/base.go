// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package base

import (
	"image/color"
	"log"
	"net"
	"time"

	"github.com/usedbytes/bot_matrix/datalink/netconn"
	led "github.com/usedbytes/linux-led"
	"github.com/usedbytes/picamera"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/usedbytes/skybot/base/dev"
	"github.com/usedbytes/skybot/base/imu"
	"github.com/usedbytes/skybot/base/motor"
	"github.com/usedbytes/skybot/base/servo"
	"github.com/usedbytes/skybot/config"
)

// Platform owns the hardware: the drive controller link, the four
// mecanum wheels, the IMU, the camera, the (optional) claw and the
// status LED. The motion methods command wheel powers directly and
// return immediately; closed-loop behaviour lives above, in pilot.
type Platform struct {
	dev *dev.Dev

	Motors *motor.Motors
	IMU    *imu.Dev

	lowBat gpio.PinIO

	i2cBus i2c.BusCloser

	Camera    *picamera.Camera
	frame     picamera.Frame
	frameTime time.Time

	claw      *servo.Dev
	clawCfg   config.Claw
	clawShut  bool
	reClaw    func() bool
	reconTime time.Duration

	led        led.RGBLED
	ledColor   color.Color
	ledTrigger led.Trigger
}

func NewPlatform(cfg *config.Config) (*Platform, error) {
	_, err := host.Init()
	if err != nil {
		log.Fatal(err)
	}

	b, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}

	g := gpioreg.ByName(cfg.Base.LowBatPin)
	if g == nil {
		log.Fatal("Couldn't get low battery GPIO")
	}

	if err = g.In(gpio.PullDown, gpio.NoEdge); err != nil {
		log.Fatal(err)
	}

	c, err := net.Dial("unix", cfg.Base.Link)
	if err != nil {
		log.Fatal(err)
	}
	t := netconn.NewNetconn(c)
	d := dev.NewDev(t)

	p := &Platform{
		dev:        d,
		i2cBus:     b,
		lowBat:     g,
		clawCfg:    cfg.Claw,
		reconTime:  time.Second * 5,
		ledColor:   color.NRGBA{0x00, 0xff, 0x00, 0x80},
		ledTrigger: led.TriggerHeartbeat,
	}

	p.Motors = motor.NewMotors(d, cfg.Base.MmPerRev, cfg.Base.ReverseLeft, cfg.Base.Brake)

	p.Camera = picamera.NewCamera(cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)
	if p.Camera == nil {
		log.Fatal("Couldn't open camera")
	}
	p.Camera.SetTransform(0, cfg.Camera.HFlip, cfg.Camera.VFlip)

	p.IMU, err = imu.NewDev(b, uint8(cfg.IMU.Addr))
	if err != nil {
		return nil, err
	}

	if err := p.IMU.WaitReady(cfg.IMU.ReadyTimeout.Duration); err != nil {
		return nil, err
	}

	if cfg.Claw.Fitted {
		p.reClaw = func() bool {
			claw, err := servo.NewI2C(b, 0x40)
			if err != nil {
				log.Println("Couldn't get claw servo")
				return false
			}

			p.claw = claw
			p.claw.SetTimeout(time.Second * 10)
			p.claw.SetPos(float32(p.clawCfg.Open))
			p.claw.Enable(true)

			return true
		}

		if !p.reClaw() {
			p.Reconnect(p.reClaw)
		}
	}

	return p, nil
}

func (p *Platform) AddLed(rgb led.RGBLED) {
	p.led = rgb

	p.SetLEDTrigger(p.ledTrigger)
	p.UpdateLed()
}

func (p *Platform) SetLEDTrigger(trig led.Trigger) {
	if p.led == nil {
		return
	}

	p.ledTrigger = trig
	p.led.SetTrigger(p.ledTrigger)
	p.UpdateLed()
}

func (p *Platform) SetLEDColor(c color.Color) {
	p.ledColor = c
	p.UpdateLed()
}

func (p *Platform) ResetLEDColor() {
	p.SetLEDTrigger(led.TriggerHeartbeat)
	p.ledColor = color.NRGBA{0x00, 0xff, 0x00, 0x80}
	p.UpdateLed()
}

func (p *Platform) UpdateLed() {
	if p.led == nil {
		return
	}

	p.led.SetColor(p.ledColor)
}

// Stop idles all four wheels. With brake configured it is an active
// stop, not a coast.
func (p *Platform) Stop() {
	p.Motors.SetPower(0, 0, 0, 0)
}

// TurnClockwise spins in place so that the tracked heading falls:
// left pair reversed, right pair forward.
func (p *Platform) TurnClockwise(power float64) {
	p.Motors.SetPower(-power, power, -power, power)
}

// TurnCounterClockwise spins the other way: tracked heading rises.
func (p *Platform) TurnCounterClockwise(power float64) {
	p.Motors.SetPower(power, -power, power, -power)
}

// TankDrive drives the left and right pairs like tank treads.
func (p *Platform) TankDrive(left, right float64) {
	p.Motors.SetPower(left, right, left, right)
}

// TankStrafe rolls the chassis sideways on the mecanum diagonals:
// front-left/back-right carry left, front-right/back-left carry right.
// The heading correction is added on the left column and subtracted on
// the right, twisting the chassis back on course while it slides.
func (p *Platform) TankStrafe(left, right, correction float64) {
	p.Motors.SetPower(left+correction, right-correction, right+correction, left-correction)
}

func (p *Platform) HasClaw() bool {
	return p.claw != nil
}

// Grab closes (or reopens) the claw. A no-op on chassis without one.
func (p *Platform) Grab(shut bool) error {
	if p.claw == nil {
		return nil
	}

	pos := p.clawCfg.Open
	if shut {
		pos = p.clawCfg.Closed
	}
	p.clawShut = shut

	err := p.claw.SetPos(float32(pos))
	if err != nil {
		p.claw = nil
		p.Reconnect(p.reClaw)
	}

	return err
}

func (p *Platform) ToggleGrab() error {
	return p.Grab(!p.clawShut)
}

func (p *Platform) SetCameraFormat(format picamera.Format) {
	p.Camera.SetFormat(format)
}

func (p *Platform) SetCameraCrop(crop picamera.Rectangle) {
	p.Camera.SetCrop(crop)
}

func (p *Platform) GetFrame() (picamera.Frame, time.Time) {
	return p.frame, p.frameTime
}

func (p *Platform) EnableCamera() {
	p.Camera.Enable()
}

func (p *Platform) DisableCamera() {
	if p.frame != nil {
		p.frame.Release()
		p.frame = nil
	}
	p.Camera.Disable()
}

func (p *Platform) CameraEnabled() bool {
	return p.Camera.Enabled()
}

func (p *Platform) Reconnect(recon func() bool) {
	time.AfterFunc(p.reconTime, func() {
		if !recon() {
			p.Reconnect(recon)
		}
	})
}

// FIXME: Broken encapsulation for music hacks.
func (p *Platform) Dev() *dev.Dev {
	return p.dev
}

// Update drains the drive controller link, snapshots the newest camera
// frame and refreshes the battery LED. Called once per main-loop tick;
// wheel step reports are applied by the motor receiver as they arrive,
// whatever call site polled them in.
func (p *Platform) Update() error {
	pkts, err := p.dev.Poll()
	if err != nil {
		return err
	}

	low := p.lowBat.Read()
	if low == gpio.High {
		p.ledColor = color.NRGBA{0xff, 0x00, 0x00, 0x80}
		p.UpdateLed()
	}

	if p.Camera != nil {
		frame, _ := p.Camera.GetFrame(0)
		if frame != nil {
			if p.frame != nil {
				p.frame.Release()
			}
			p.frame = frame
			p.frameTime = time.Now()
		}
	}

	for _, pkt := range pkts {
		switch pkt.(type) {
		case *motor.StepReport:
			// Already applied on receive.
		default:
			log.Printf("%v\n", pkt)
		}
	}

	return nil
}

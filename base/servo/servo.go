package servo

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn"
	"periph.io/x/periph/conn/i2c"
)

// Register map of the servo helper board. Only channel A is wired on
// this chassis (the claw); channel B is left untouched.
const (
	regControl uint8 = 0
	regServoA  uint8 = 1
	regServoB  uint8 = 2
)

type Dev struct {
	d    conn.Conn
	name string

	val byte

	timer   *time.Timer
	timeout time.Duration
}

func NewI2C(b i2c.Bus, addr uint8) (*Dev, error) {
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: uint16(addr)}, name: "Claw"}

	if !d.Ping() {
		return nil, fmt.Errorf("No response from servo board at %#x", addr)
	}

	return d, nil
}

func toPos(x float32) byte {
	if x < 0.0 {
		return 0
	} else if x > 1.0 {
		return 255
	}

	return byte(255.0 * x)
}

func (d *Dev) resetTimeout() {
	if d.timer != nil {
		if !d.timer.Stop() {
			d.timer = nil
			// Re-enable
			d.writeReg(regControl, []byte{d.val})
		}
	}

	if d.timeout != 0 {
		d.timer = time.AfterFunc(d.timeout, func() { d.Halt() })
	}
}

// SetTimeout arms a dead-man timer: if nothing pokes the claw for this
// long, the board drops the servo drive so it can't sit stalled
// against the block.
func (d *Dev) SetTimeout(to time.Duration) {
	d.timeout = to
	d.resetTimeout()
}

func (d *Dev) Enable(on bool) error {
	val := []byte{0}

	err := d.readReg(regControl, val)
	if err != nil {
		return err
	}

	val[0] &= ^byte(0x7)
	if on {
		val[0] |= 0x1
		val[0] |= 1 << 2
	}

	d.val = val[0]
	d.resetTimeout()

	return d.writeReg(regControl, val)
}

func (d *Dev) SetPos(pos float32) error {
	d.resetTimeout()

	return d.writeReg(regServoA, []byte{toPos(pos)})
}

func (d *Dev) Ping() bool {
	tmp := []byte{0}
	err := d.readReg(regControl, tmp)

	return err == nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.d)
}

func (d *Dev) Halt() error {
	// Don't use Enable() so we can bypass the timeout logic
	return d.writeReg(regControl, []byte{0})
}

func (d *Dev) readReg(reg uint8, data []byte) error {
	return d.d.Tx([]byte{reg}, data)
}

func (d *Dev) writeReg(reg uint8, data []byte) error {
	write := make([]byte, 1, len(data)+1)
	write[0] = reg
	write = append(write, data...)

	return d.d.Tx(write, nil)
}

var _ conn.Resource = &Dev{}

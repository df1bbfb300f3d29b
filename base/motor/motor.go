// Copyright 2019 Brian Starkey <stark3y@gmail.com>
package motor

import (
	"bytes"
	"encoding/binary"
	"log"
	"math"

	"github.com/usedbytes/bot_matrix/datalink"

	"github.com/usedbytes/skybot/base/dev"
)

// Wheel ids, as the drive controller numbers its channels.
type Wheel int

const (
	FrontLeft Wheel = iota
	FrontRight
	BackLeft
	BackRight
	NumWheels
)

// Drive controller endpoints.
const (
	EPPower  uint8 = 0x1
	EPConfig uint8 = 0x2
	EPSteps  uint8 = 0x12
)

// Encoder resolution of the drive controller's step reports.
const stepsPerRev = 600

type Motors struct {
	dev      *dev.Dev
	mmPerRev float64

	reverse byte
	brake   bool

	powers [NumWheels]float64
	revs   [NumWheels]float64
}

type StepReport struct {
	Id    uint32
	Steps int32
}

// scaleAndClamp maps a power request onto the wire's int8 range,
// saturating anything outside [-1, 1].
func scaleAndClamp(value float64) int8 {
	scaled := value * 127
	if scaled >= 127 {
		return 127
	}
	if scaled <= -127 {
		return -127
	}

	return int8(math.Round(scaled))
}

func NewMotors(d *dev.Dev, mmPerRev float64, reverseLeft, brake bool) *Motors {
	m := &Motors{
		dev:      d,
		mmPerRev: mmPerRev,
		brake:    brake,
	}

	if reverseLeft {
		m.reverse = 1<<uint(FrontLeft) | 1<<uint(BackLeft)
	}

	d.Add(EPSteps, m.Receive)
	m.configure()

	return m
}

// configure pushes the one-time channel setup: which channels run
// mirrored, and whether zero power means brake or coast.
func (m *Motors) configure() {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, m.reverse)

	brake := byte(0)
	if m.brake {
		brake = 1
	}
	binary.Write(buf, binary.LittleEndian, brake)

	m.dev.Queue(&datalink.Packet{Endpoint: EPConfig, Data: buf.Bytes()})
	m.flush()
}

func (m *Motors) flush() {
	if _, err := m.dev.Poll(); err != nil {
		log.Println("motors:", err)
	}
}

func (m *Motors) Receive(p *datalink.Packet) interface{} {
	if p.Endpoint != EPSteps {
		return nil
	}

	rep := &StepReport{}
	buf := bytes.NewBuffer(p.Data)
	binary.Read(buf, binary.LittleEndian, &rep.Id)
	binary.Read(buf, binary.LittleEndian, &rep.Steps)

	m.addSteps(rep)

	return rep
}

func (m *Motors) addSteps(rep *StepReport) {
	if rep.Id >= uint32(NumWheels) {
		return
	}

	m.revs[rep.Id] += float64(rep.Steps) / stepsPerRev
}

// SetPower commands all four wheels in one frame. Requests outside
// [-1, 1] saturate at the wire encoding, and the recorded powers
// saturate with them.
func (m *Motors) SetPower(fl, fr, bl, br float64) {
	wire := [NumWheels]int8{
		scaleAndClamp(fl),
		scaleAndClamp(fr),
		scaleAndClamp(bl),
		scaleAndClamp(br),
	}

	for i, w := range wire {
		m.powers[i] = float64(w) / 127
	}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, wire)

	m.dev.Queue(&datalink.Packet{Endpoint: EPPower, Data: buf.Bytes()})
	m.flush()
}

func (m *Motors) Stop() {
	m.SetPower(0, 0, 0, 0)
}

// Powers returns the last commanded (post-saturation) wheel powers.
func (m *Motors) Powers() [NumWheels]float64 {
	return m.powers
}

// Distances returns the distance each wheel has rolled, in mm.
func (m *Motors) Distances() [NumWheels]float64 {
	var d [NumWheels]float64
	for i, r := range m.revs {
		d[i] = r * m.mmPerRev
	}

	return d
}

// Copyright 2019 Brian Starkey <stark3y@gmail.com>
package motor

import (
	"bytes"
	"encoding/binary"
	"testing"

	"go.viam.com/test"

	"github.com/usedbytes/bot_matrix/datalink"

	"github.com/usedbytes/skybot/base/dev"
)

// fakeLink captures outbound packets and plays back queued responses
// on the next transaction.
type fakeLink struct {
	sent []datalink.Packet
	rx   []datalink.Packet
}

func (f *fakeLink) Transact(pkts []datalink.Packet) ([]datalink.Packet, error) {
	f.sent = append(f.sent, pkts...)

	rx := f.rx
	f.rx = nil

	return rx, nil
}

func (f *fakeLink) onEndpoint(ep uint8) []datalink.Packet {
	var out []datalink.Packet
	for _, p := range f.sent {
		if p.Endpoint == ep {
			out = append(out, p)
		}
	}

	return out
}

func newTestMotors(mmPerRev float64, reverseLeft, brake bool) (*Motors, *fakeLink) {
	f := &fakeLink{}
	m := NewMotors(dev.NewDev(f), mmPerRev, reverseLeft, brake)

	return m, f
}

func stepPacket(id uint32, steps int32) datalink.Packet {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, id)
	binary.Write(buf, binary.LittleEndian, steps)

	return datalink.Packet{Endpoint: EPSteps, Data: buf.Bytes()}
}

func TestConfigureFrame(t *testing.T) {
	_, f := newTestMotors(100, true, true)

	cfg := f.onEndpoint(EPConfig)
	test.That(t, len(cfg), test.ShouldEqual, 1)
	// Left column reversed: front-left and back-left bits. Brake on.
	test.That(t, cfg[0].Data, test.ShouldResemble, []byte{0x05, 0x01})

	_, f = newTestMotors(100, false, false)

	cfg = f.onEndpoint(EPConfig)
	test.That(t, len(cfg), test.ShouldEqual, 1)
	test.That(t, cfg[0].Data, test.ShouldResemble, []byte{0x00, 0x00})
}

func TestSetPowerEncoding(t *testing.T) {
	m, f := newTestMotors(100, false, false)

	m.SetPower(0.5, -0.25, 1.5, -2.0)

	pw := f.onEndpoint(EPPower)
	test.That(t, len(pw), test.ShouldEqual, 1)
	// Out-of-range requests saturate at the wire encoding.
	test.That(t, pw[0].Data, test.ShouldResemble, []byte{0x40, 0xe0, 0x7f, 0x81})

	p := m.Powers()
	test.That(t, p[FrontLeft], test.ShouldAlmostEqual, 64.0/127, 1e-9)
	test.That(t, p[FrontRight], test.ShouldAlmostEqual, -32.0/127, 1e-9)
	test.That(t, p[BackLeft], test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, p[BackRight], test.ShouldAlmostEqual, -1, 1e-9)
}

func TestStop(t *testing.T) {
	m, f := newTestMotors(100, false, true)

	m.SetPower(1, 1, 1, 1)
	m.Stop()

	pw := f.onEndpoint(EPPower)
	test.That(t, len(pw), test.ShouldEqual, 2)
	test.That(t, pw[1].Data, test.ShouldResemble, []byte{0x00, 0x00, 0x00, 0x00})

	test.That(t, m.Powers(), test.ShouldResemble, [NumWheels]float64{})
}

func TestStepReports(t *testing.T) {
	m, f := newTestMotors(200, false, false)

	// One revolution forward, half forward, one reverse.
	f.rx = []datalink.Packet{
		stepPacket(0, 600),
		stepPacket(1, 300),
		stepPacket(3, -600),
	}
	m.flush()

	d := m.Distances()
	test.That(t, d[FrontLeft], test.ShouldAlmostEqual, 200, 1e-9)
	test.That(t, d[FrontRight], test.ShouldAlmostEqual, 100, 1e-9)
	test.That(t, d[BackLeft], test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, d[BackRight], test.ShouldAlmostEqual, -200, 1e-9)

	// Reports accumulate.
	f.rx = []datalink.Packet{stepPacket(0, 300)}
	m.flush()
	test.That(t, m.Distances()[FrontLeft], test.ShouldAlmostEqual, 300, 1e-9)

	// Unknown wheel ids are dropped.
	before := m.Distances()
	f.rx = []datalink.Packet{stepPacket(9, 600)}
	m.flush()
	test.That(t, m.Distances(), test.ShouldResemble, before)
}

// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package dev

import (
	"fmt"

	"github.com/usedbytes/bot_matrix/datalink"
)

// Receiver decodes (and applies) an inbound packet for its endpoint.
// Whatever it returns is handed back from Poll for anyone who wants
// to observe the traffic.
type Receiver func(*datalink.Packet) interface{}

type Component struct {
	d  *Dev
	ep uint8
}

type Dev struct {
	transactor datalink.Transactor
	receivers  map[uint8]Receiver
	queue      []datalink.Packet
	minNum     int
	allocNum   int
}

func NewDev(transactor datalink.Transactor) *Dev {
	allocNum := 4

	return &Dev{
		transactor: transactor,
		receivers:  make(map[uint8]Receiver),
		queue:      make([]datalink.Packet, 0, allocNum),
		minNum:     0,
		allocNum:   allocNum,
	}
}

func (d *Dev) Add(ep uint8, r Receiver) (Component, error) {
	if _, ok := d.receivers[ep]; ok {
		return Component{}, fmt.Errorf("Duplicate endpoint %d", ep)
	}

	d.receivers[ep] = r

	return Component{d, ep}, nil
}

func (c Component) Remove() error {
	return c.d.remove(c.ep)
}

func (d *Dev) remove(ep uint8) error {
	if _, ok := d.receivers[ep]; !ok {
		return fmt.Errorf("No endpoint %d", ep)
	}

	delete(d.receivers, ep)

	return nil
}

func (d *Dev) Queue(p *datalink.Packet) {
	d.queue = append(d.queue, *p)
}

func (d *Dev) receive(p *datalink.Packet) interface{} {
	if p.Endpoint == 0 {
		return nil
	}

	r, ok := d.receivers[p.Endpoint]
	if !ok {
		return fmt.Errorf("Received unknown datalink Packet (EP %d)", p.Endpoint)
	}

	return r(p)
}

// Poll transacts anything queued (padded to minNum so the link keeps
// its round-trip cadence) and runs the receivers over whatever came
// back. Safe to call with an empty queue just to drain the far end.
func (d *Dev) Poll() ([]interface{}, error) {
	toSend := d.queue
	if len(toSend) > 0 {
		d.queue = make([]datalink.Packet, 0, d.allocNum)

		if len(toSend) < d.minNum {
			toSend = append(toSend, make([]datalink.Packet, d.minNum-len(toSend))...)
		}
	}

	pkts, err := d.transactor.Transact(toSend)
	if err != nil {
		return nil, err
	}

	ret := make([]interface{}, 0, len(pkts))
	for i := range pkts {
		if v := d.receive(&pkts[i]); v != nil {
			ret = append(ret, v)
		}
	}

	return ret, nil
}

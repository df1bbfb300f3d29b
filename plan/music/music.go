// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package music

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/BurntSushi/toml"
	"gitlab.com/gomidi/midi/mid"
	"gitlab.com/gomidi/midi/smf"

	"github.com/usedbytes/bot_matrix/datalink"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/base/dev"
	"github.com/usedbytes/skybot/config"
	"github.com/usedbytes/skybot/interface/input"
)

const TaskName = "music"

// Buzzer endpoints on the drive controller.
const (
	epNote     uint8 = 3
	epPlayback uint8 = 4
)

type Note struct {
	Key      uint8
	Start    uint64
	Duration uint64
}

// Score is one tune, flattened to a single voice; the buzzer is
// monophonic.
type Score struct {
	Name  string
	Notes []*Note
	End   uint64

	TicksToDuration func(uint32) time.Duration
	DurationToTicks func(time.Duration) uint32
	MetricTicks     smf.MetricTicks
}

type Player struct {
	Score     *Score
	Started   time.Time
	Idx       int
	Timestamp uint64
	dev       *dev.Dev
}

func NewPlayer(s *Score, d *dev.Dev) *Player {
	return &Player{Score: s, dev: d}
}

func (p *Player) emit(note *Note) {
	buf := new(bytes.Buffer)

	tsUs := p.Score.TicksToDuration(uint32(note.Start)).Nanoseconds() / 1000
	durUs := p.Score.TicksToDuration(uint32(note.Duration)).Nanoseconds() / 1000
	binary.Write(buf, binary.LittleEndian, uint32(0))
	binary.Write(buf, binary.LittleEndian, uint32(tsUs))
	binary.Write(buf, binary.LittleEndian, uint32(note.Key))
	binary.Write(buf, binary.LittleEndian, uint32(durUs))

	p.dev.Queue(&datalink.Packet{Endpoint: epNote, Data: buf.Bytes()})
}

func (p *Player) Reset() {
	p.Started = time.Time{}
	p.Idx = 0
	p.Timestamp = 0

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(0))
	binary.Write(buf, binary.LittleEndian, uint32(1))

	p.dev.Queue(&datalink.Packet{Endpoint: epPlayback, Data: buf.Bytes()})
}

func (p *Player) PlayPause(play bool) {
	v := uint32(0)
	if play {
		v = 1
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, v)
	binary.Write(buf, binary.LittleEndian, uint32(0))

	p.dev.Queue(&datalink.Packet{Endpoint: epPlayback, Data: buf.Bytes()})
}

func (p *Player) Done() bool {
	return p.Idx >= len(p.Score.Notes)
}

// PlayUntil queues every note starting before the given wall-clock
// time. The controller schedules them from the timestamps itself; we
// just have to stay ahead of it.
func (p *Player) PlayUntil(until time.Time) {
	if p.Started.IsZero() {
		log.Println("Starting", p.Score.Name)
		p.Started = time.Now()
	}

	abs := until.Sub(p.Started)
	if abs < 0 {
		return
	}

	end := uint64(p.Score.DurationToTicks(abs))
	for ; p.Idx < len(p.Score.Notes); p.Idx++ {
		note := p.Score.Notes[p.Idx]
		if note.Start > end {
			break
		}

		p.emit(note)
		p.Timestamp = note.Start
	}
}

type Tune struct {
	Filename string
	Track    int
}

// LoadTune flattens one track of an SMF file into a Score. Overlapping
// notes collapse onto whichever started first.
func LoadTune(tune *Tune) (*Score, error) {
	s := &Score{Name: tune.Filename}

	var current *Note

	rd := mid.NewReader()

	rd.SMFHeader = func(hdr smf.Header) {
		s.MetricTicks = hdr.TimeFormat.(smf.MetricTicks)
		s.TicksToDuration = func(ticks uint32) time.Duration {
			return s.MetricTicks.FractionalDuration(120.0, ticks)
		}
		s.DurationToTicks = func(dur time.Duration) uint32 {
			return s.MetricTicks.FractionalTicks(120.0, dur)
		}
	}
	rd.Msg.Meta.TempoBPM = func(p mid.Position, bpm float64) {
		s.TicksToDuration = func(ticks uint32) time.Duration {
			return s.MetricTicks.FractionalDuration(bpm, ticks)
		}
		s.DurationToTicks = func(dur time.Duration) uint32 {
			return s.MetricTicks.FractionalTicks(bpm, dur)
		}
	}
	rd.Msg.Channel.NoteOn = func(p *mid.Position, channel, key, vel uint8) {
		if int(p.Track) != tune.Track {
			return
		}

		if current != nil {
			current.Duration = p.AbsoluteTicks - current.Start
			if current.Duration != 0 {
				s.Notes = append(s.Notes, current)
			}
		}

		current = &Note{Key: key, Start: p.AbsoluteTicks}
	}
	rd.Msg.Channel.NoteOff = func(p *mid.Position, channel, key, vel uint8) {
		if int(p.Track) != tune.Track {
			return
		}

		s.End = p.AbsoluteTicks
		if current == nil || key != current.Key {
			return
		}

		current.Duration = p.AbsoluteTicks - current.Start
		s.Notes = append(s.Notes, current)
		current = nil
	}

	if err := rd.ReadSMFFile(tune.Filename); err != nil {
		return nil, err
	}

	if len(s.Notes) == 0 {
		return nil, fmt.Errorf("No notes on track %d of %s", tune.Track, tune.Filename)
	}

	return s, nil
}

type Task struct {
	p        *base.Platform
	d        *dev.Dev
	scoreIdx int

	Player *Player
	Scores []*Score
}

func (t *Task) Enter() {
	t.p.Stop()

	t.Player = NewPlayer(t.Scores[t.scoreIdx], t.d)
	t.Player.Reset()
	t.Player.PlayPause(true)

	t.scoreIdx++
	if t.scoreIdx >= len(t.Scores) {
		t.scoreIdx = 0
	}
}

func (t *Task) Exit() {
	t.Player.PlayPause(false)
	t.p.Stop()
}

func (t *Task) Tick(buttons input.ButtonState) {
	if t.Player == nil || t.Player.Done() {
		return
	}

	t.Player.PlayUntil(time.Now().Add(50 * time.Millisecond))
}

func (t *Task) Color() color.Color {
	return color.NRGBA{0x00, 0xff, 0xff, 0xff}
}

func NewTask(cfg *config.Config, pl *base.Platform) (*Task, error) {
	task := &Task{
		p: pl,
		d: pl.Dev(),
	}

	var tunes struct {
		Files []Tune
	}

	if _, err := toml.DecodeFile(cfg.Tunes, &tunes); err != nil {
		return nil, err
	}

	for i := range tunes.Files {
		s, err := LoadTune(&tunes.Files[i])
		if err != nil {
			return nil, err
		}
		task.Scores = append(task.Scores, s)
	}

	if len(task.Scores) == 0 {
		return nil, fmt.Errorf("No tunes in %s", cfg.Tunes)
	}

	return task, nil
}

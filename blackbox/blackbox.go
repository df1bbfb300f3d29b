// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package blackbox records control-loop samples to a local sqlite
// database, for tuning the correction gain after a run.
package blackbox

import (
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one boot of the robot. Samples hang off it.
type Run struct {
	ID        uint `gorm:"primarykey"`
	StartedAt time.Time
}

type Sample struct {
	ID          uint      `gorm:"primarykey"`
	RunID       uint      `gorm:"index"`
	Time        time.Time `gorm:"index"`
	Task        string    `gorm:"size:32"`
	Maneuver    string    `gorm:"size:32"`
	Target      float64
	Heading     float64
	Correction  float64
	Left        float64
	Right       float64
	PoseX       float64
	PoseY       float64
	PoseHeading float64
}

const queueDepth = 1024

type Recorder struct {
	db       *gorm.DB
	run      Run
	samples  chan Sample
	done     chan struct{}
	finished chan struct{}
}

func Open(path string) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        256,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Run{}, &Sample{}); err != nil {
		return nil, err
	}

	r := &Recorder{
		db:       db,
		run:      Run{StartedAt: time.Now()},
		samples:  make(chan Sample, queueDepth),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	if err := db.Create(&r.run).Error; err != nil {
		return nil, err
	}

	go r.writer()

	return r, nil
}

// Record queues a sample, dropping it if the writer is behind. The
// control loop must never block on the database.
func (r *Recorder) Record(s Sample) {
	s.RunID = r.run.ID
	if s.Time.IsZero() {
		s.Time = time.Now()
	}

	select {
	case r.samples <- s:
	default:
	}
}

// Close flushes whatever is queued and waits for the writer.
func (r *Recorder) Close() {
	close(r.done)
	<-r.finished
}

func (r *Recorder) writer() {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			r.flush()
		case <-r.done:
			r.flush()
			close(r.finished)
			return
		}
	}
}

func (r *Recorder) flush() {
	n := len(r.samples)
	if n == 0 {
		return
	}

	batch := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, <-r.samples)
	}

	if err := r.db.Create(&batch).Error; err != nil {
		log.Println("blackbox:", err)
	}
}

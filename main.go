// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package main

import (
	"context"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/usedbytes/picamera"

	"github.com/usedbytes/skybot/base"
	"github.com/usedbytes/skybot/blackbox"
	"github.com/usedbytes/skybot/config"
	"github.com/usedbytes/skybot/gyro"
	"github.com/usedbytes/skybot/interface/input"
	"github.com/usedbytes/skybot/interface/menu"
	"github.com/usedbytes/skybot/model"
	"github.com/usedbytes/skybot/pilot"
	"github.com/usedbytes/skybot/plan"
	"github.com/usedbytes/skybot/plan/approach"
	"github.com/usedbytes/skybot/plan/music"
	"github.com/usedbytes/skybot/plan/rc"
	"github.com/usedbytes/skybot/plan/square"
	"github.com/usedbytes/skybot/tele"
)

func main() {
	log.Println("Skybot")

	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ip := input.NewCollector()

	srv := tele.NewServer(cfg.Telemetry.Listen)
	if err := srv.Start(); err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	telem := srv.Telem

	platform, err := base.NewPlatform(cfg)
	if err != nil {
		log.Fatalf(err.Error())
	}

	tracker := gyro.NewTracker(platform.IMU)

	pi := pilot.New(platform, tracker)
	pi.SetGain(cfg.Pilot.Gain)
	pi.SetTimings(cfg.Pilot.Tick.Duration, cfg.Pilot.Settle.Duration)

	mod := model.NewModel(platform)

	var rec *blackbox.Recorder
	if cfg.Blackbox.Enabled {
		rec, err = blackbox.Open(cfg.Blackbox.Path)
		if err != nil {
			log.Fatalf("blackbox: %v", err)
		}
		defer rec.Close()
	}

	pi.Observe(func(s pilot.State) {
		telem.SetPilot(s)
		if rec != nil {
			rec.Record(blackbox.Sample{
				Maneuver:   s.Maneuver,
				Target:     s.Target,
				Heading:    s.Heading,
				Correction: s.Correction,
				Left:       s.Left,
				Right:      s.Right,
			})
		}
	})

	ctx, stop := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		stop()
	}()

	planner := plan.NewPlanner(platform)
	planner.AddTask(rc.TaskName, rc.NewTask(ip, platform, pi), menu.None)
	planner.AddTask(square.TaskName, square.NewTask(ctx, ip, pi), menu.South)
	planner.AddTask(approach.TaskName, approach.NewTask(cfg, platform, pi), menu.East)

	musicTask, err := music.NewTask(cfg, platform)
	if err != nil {
		log.Println("music:", err)
	} else {
		planner.AddTask(music.TaskName, musicTask, menu.West)
	}

	planner.SetTask(rc.TaskName)

	platform.SetCameraCrop(picamera.Rect(0.0, 0.0, 1.0, 1.0))
	platform.SetCameraFormat(picamera.FORMAT_I420)
	platform.Camera.SetOutSize(64, 48)
	platform.EnableCamera()
	defer platform.DisableCamera()

	tick := time.NewTicker(16 * time.Millisecond)
	defer tick.Stop()

	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			platform.Stop()
			log.Println("Shutting down")
			return
		case <-tick.C:
		}

		err = platform.Update()
		if err != nil {
			log.Println(err.Error())
		}

		select {
		case l := <-ip.Leds():
			platform.AddLed(l)
		default:
		}

		if r, err := platform.IMU.Orientation(); err == nil {
			mod.Tick(r.Heading)
			telem.SetEuler([]float64{r.Heading, r.Roll, r.Pitch})
		}

		pos, angle := mod.Pose()
		telem.SetPose(pos.X, pos.Y, angle)

		frame, frameTime := platform.GetFrame()
		if frame != nil && frameTime != lastFrame {
			if v, ok := frame.(*picamera.YCbCrFrame); ok {
				telem.SetFrame(&image.Gray{
					Pix:    v.YCbCr.Y,
					Stride: v.YCbCr.YStride,
					Rect:   v.YCbCr.Rect,
				})
			}
			lastFrame = frameTime
		}

		buttons := ip.Buttons()

		if buttons[input.PS] == input.Pressed {
			log.Println("Stop!")
			ip.TakePanic()
			platform.Stop()
			planner.SetTask(rc.TaskName)
		}

		planner.Tick(buttons)
		telem.SetTask(planner.CurrentName())

		if rec != nil {
			rec.Record(blackbox.Sample{
				Task:        planner.CurrentName(),
				Heading:     tracker.Heading(),
				PoseX:       pos.X,
				PoseY:       pos.Y,
				PoseHeading: angle,
			})
		}
	}
}

// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package tele exposes the robot's state to off-board tools, over
// net/rpc for the desktop UI and over a websocket for anything that
// prefers JSON.
package tele

import (
	"image"
	"image/png"
	"log"
	"net"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/image/draw"

	"github.com/usedbytes/skybot/pilot"
)

type Pose struct {
	X, Y    float64
	Heading float64
}

// Telem holds the latest snapshot of everything worth watching.
// The Set methods are called from the control loop; the Get methods
// are net/rpc handlers.
type Telem struct {
	lock  sync.Mutex
	euler []float64
	pose  Pose
	pilot pilot.State
	task  string
	frame image.Gray
}

func (t *Telem) SetEuler(vec []float64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	copy(t.euler, vec)
}

func (t *Telem) GetEuler(ignored bool, vec *[]float64) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	e := make([]float64, len(t.euler))
	copy(e, t.euler)
	*vec = e

	return nil
}

func (t *Telem) SetPose(x, y, heading float64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.pose = Pose{X: x, Y: y, Heading: heading}
}

func (t *Telem) GetPose(ignored bool, pose *Pose) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	*pose = t.pose

	return nil
}

func (t *Telem) SetPilot(s pilot.State) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.pilot = s
}

func (t *Telem) GetPilot(ignored bool, s *pilot.State) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	*s = t.pilot

	return nil
}

func (t *Telem) SetTask(name string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.task = name
}

func (t *Telem) SetFrame(img *image.Gray) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.frame = *img
	t.frame.Pix = make([]byte, len(img.Pix))
	copy(t.frame.Pix, img.Pix)
}

// GetFrame hands out the stored Pix slice. SetFrame always replaces it
// rather than writing through, so the caller's copy stays intact.
func (t *Telem) GetFrame(ignored bool, img *image.Gray) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	*img = t.frame

	return nil
}

type snapshot struct {
	Time  time.Time   `json:"time"`
	Pose  Pose        `json:"pose"`
	Euler []float64   `json:"euler"`
	Task  string      `json:"task"`
	Pilot pilot.State `json:"pilot"`
}

func (t *Telem) snapshot() snapshot {
	t.lock.Lock()
	defer t.lock.Unlock()

	e := make([]float64, len(t.euler))
	copy(e, t.euler)

	return snapshot{
		Time:  time.Now(),
		Pose:  t.pose,
		Euler: e,
		Task:  t.task,
		Pilot: t.pilot,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	Telem  *Telem
	listen string
}

func NewServer(listen string) *Server {
	return &Server{
		Telem:  &Telem{euler: make([]float64, 3)},
		listen: listen,
	}
}

// Start serves RPC and HTTP on the configured address and returns.
func (s *Server) Start() error {
	if err := rpc.Register(s.Telem); err != nil {
		return err
	}
	rpc.HandleHTTP()

	http.HandleFunc("/ws", s.serveWs)
	http.HandleFunc("/frame.png", s.serveFrame)

	l, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	go http.Serve(l, nil)

	return nil
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("tele: upgrade:", err)
		return
	}
	defer conn.Close()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for range tick.C {
		if err := conn.WriteJSON(s.Telem.snapshot()); err != nil {
			break
		}
	}
}

// The camera runs tiny; scale up so the browser shows something
// bigger than a stamp.
const frameScale = 4

func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	var frame image.Gray
	s.Telem.GetFrame(false, &frame)
	if frame.Rect.Empty() {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}

	big := image.NewGray(image.Rect(0, 0, frame.Rect.Dx()*frameScale, frame.Rect.Dy()*frameScale))
	draw.NearestNeighbor.Scale(big, big.Bounds(), &frame, frame.Bounds(), draw.Src, nil)

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, big); err != nil {
		log.Println("tele: encode frame:", err)
	}
}

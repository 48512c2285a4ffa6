// Package status broadcasts conversion progress to connected websocket clients.
package status

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

const (
	pingPeriod   = 30 * time.Second
	writeTimeout = 40 * time.Second
	queueSize    = 32
)

type message struct {
	Job      string
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type subscriber struct {
	conn  *websocket.Conn
	queue chan []byte
}

// hub fans every message out to subscribers and remembers the last one for newcomers
type hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	last        []byte
	incoming    chan *message
}

var defaultHub = newHub()

func newHub() *hub {
	h := &hub{
		subscribers: make(map[*subscriber]struct{}),
		incoming:    make(chan *message, 16),
	}
	go h.run()
	return h
}

func (h *hub) run() {
	for m := range h.incoming {
		data, err := json.Marshal(m)
		if err != nil {
			log.Errorf("[status] marshal error: %v", err)
			continue
		}
		h.mu.Lock()
		h.last = data
		for s := range h.subscribers {
			select {
			case s.queue <- data:
			default:
				log.Debug("[status] subscriber queue full, message dropped")
			}
		}
		h.mu.Unlock()
	}
}

func (h *hub) subscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s] = struct{}{}
	if h.last != nil {
		s.queue <- h.last
	}
}

func (h *hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, s)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (s *subscriber) write(h *hub) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		h.unsubscribe(s)
		s.conn.Close()
	}()

	send := func(kind int, data []byte) error {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return s.conn.WriteMessage(kind, data)
	}
	for {
		select {
		case data := <-s.queue:
			if err := send(websocket.TextMessage, data); err != nil {
				log.Warnf("[status] ws write msg error: %v", err)
				return
			}
		case <-ping.C:
			if err := send(websocket.PingMessage, nil); err != nil {
				log.Warnf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// read drains control frames, subscriber leaves on first read error
func (s *subscriber) read() {
	defer s.conn.Close()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NewClient subscribes connection to status messages, last message is sent right away
func NewClient(conn *websocket.Conn) {
	s := &subscriber{conn: conn, queue: make(chan []byte, queueSize)}
	defaultHub.subscribe(s)
	go s.write(defaultHub)
	go s.read()
}

func ClientsCount() int {
	return defaultHub.count()
}

func Status(job string, msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	defaultHub.incoming <- &message{
		Job:      job,
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress,
	}
}

func Info(format string, a ...interface{}) {
	Status("", fmt.Sprintf(format, a...), INFO, 0)
}

func Error(format string, a ...interface{}) {
	Status("", fmt.Sprintf(format, a...), ERROR, 0)
}

// Job groups status messages of one conversion
type Job struct {
	Id   string
	Name string
}

func StartJob(name string) *Job {
	j := &Job{Id: uuid.NewString(), Name: name}
	log.Info("Job started", "job", j.Id, "name", name)
	Status(j.Id, "Started "+name, INFO, 0)
	return j
}

func (j *Job) Progress(progress float32, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	log.Debug(msg, "job", j.Id, "progress", progress)
	Status(j.Id, msg, PROGRESS, progress)
}

func (j *Job) Done() {
	log.Info("Job done", "job", j.Id, "name", j.Name)
	Status(j.Id, "Finished "+j.Name, PROGRESS, 1)
}

func (j *Job) Fail(err error) {
	log.Error("Job failed", "job", j.Id, "name", j.Name, "err", err)
	Status(j.Id, fmt.Sprintf("%s failed: %v", j.Name, err), ERROR, 0)
}

package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pandeptwidyaop/pm2-remote/internal/logfile"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

// SessionState is the lifecycle position of a LogSession.
type SessionState int

const (
	// SessionCreated means the session exists but nothing is attached yet.
	SessionCreated SessionState = iota
	// SessionActive means followers are attached and events flow.
	SessionActive
	// SessionClosed is terminal.
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// LogSession follows one process's log files for one subscriber.
//
// onEvent is called with the session lock held, one event at a time, and
// only while the session is active. It must not call Close.
type LogSession struct {
	name      string
	paths     map[models.LogChannel]string
	poll      time.Duration
	heartbeat time.Duration
	onEvent   func(models.LogEvent)

	mu        sync.Mutex
	state     SessionState
	followers []*logfile.Follower

	stopHeartbeat chan struct{}
	heartbeatWG   sync.WaitGroup
	done          chan struct{}
	releaseOnce   sync.Once
}

func newLogSession(name string, paths map[models.LogChannel]string, poll, heartbeat time.Duration, onEvent func(models.LogEvent)) *LogSession {
	return &LogSession{
		name:          name,
		paths:         paths,
		poll:          poll,
		heartbeat:     heartbeat,
		onEvent:       onEvent,
		stopHeartbeat: make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// start creates missing log files, attaches a follower per file and
// begins the keepalive.
func (s *LogSession) start() error {
	channels := make([]models.LogChannel, 0, len(s.paths))
	for ch := range s.paths {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] > channels[j] })

	for _, ch := range channels {
		if err := ensureFile(s.paths[ch]); err != nil {
			return fmt.Errorf("%w: %v", ErrLogIO, err)
		}
	}

	s.mu.Lock()
	s.state = SessionActive
	for _, ch := range channels {
		f := logfile.NewFollower(s.paths[ch], s.poll,
			func(line string) {
				s.deliver(models.LogEvent{Type: models.EventLine, Channel: ch, Data: line, Time: time.Now()})
			},
			s.fail,
		)
		s.followers = append(s.followers, f)
		if err := f.Start(); err != nil {
			s.state = SessionClosed
			s.mu.Unlock()
			s.release()
			return fmt.Errorf("%w: %v", ErrLogIO, err)
		}
	}
	s.heartbeatWG.Add(1)
	s.mu.Unlock()

	go s.keepalive()
	log.Printf("[LogStream] session for %s active (%d files)", s.name, len(channels))
	return nil
}

func (s *LogSession) keepalive() {
	defer s.heartbeatWG.Done()
	if s.heartbeat <= 0 {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopHeartbeat:
			return
		case <-ticker.C:
			s.deliver(models.LogEvent{Type: models.EventPing, Time: time.Now()})
		}
	}
}

func (s *LogSession) deliver(ev models.LogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return
	}
	s.onEvent(ev)
}

// fail reports err as the single terminal event and closes the session.
func (s *LogSession) fail(err error) {
	s.mu.Lock()
	if s.state != SessionActive {
		s.mu.Unlock()
		return
	}
	s.onEvent(models.LogEvent{Type: models.EventError, Data: err.Error(), Time: time.Now()})
	s.state = SessionClosed
	s.mu.Unlock()

	log.Printf("[LogStream] session for %s failed: %v", s.name, err)
	// Called from a follower goroutine, which Stop would wait on.
	go s.release()
}

// Close stops every follower and the keepalive. No event is delivered
// after Close returns. Further calls have no effect.
func (s *LogSession) Close() {
	s.mu.Lock()
	s.state = SessionClosed
	s.mu.Unlock()
	s.release()
}

func (s *LogSession) release() {
	s.releaseOnce.Do(func() {
		close(s.stopHeartbeat)
		for _, f := range s.followers {
			f.Stop()
		}
		s.heartbeatWG.Wait()
		close(s.done)
	})
}

// Done is closed once the session has released its resources.
func (s *LogSession) Done() <-chan struct{} {
	return s.done
}

// State reports the current lifecycle state.
func (s *LogSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ensureFile creates path empty if it does not exist.
func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

package logfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is used when a Follower is created without one.
const DefaultPollInterval = 250 * time.Millisecond

// readChunk bounds how much new data is read per step.
const readChunk = 64 << 10

// maxPartial bounds a held-back partial line. Longer runs without a
// newline are emitted as a line of their own.
const maxPartial = 16 * readChunk

// Follower tails a single growing file. It starts at the current end of
// file and reports every complete line appended afterwards. A trailing
// partial line is held back until its newline arrives or it reaches
// maxPartial bytes.
type Follower struct {
	path    string
	poll    time.Duration
	onLine  func(string)
	onError func(error)

	offset  int64
	partial []byte

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewFollower creates a Follower for path. onLine receives each complete
// line without its terminator. onError receives a read failure, after which
// the follower stops on its own.
func NewFollower(path string, poll time.Duration, onLine func(string), onError func(error)) *Follower {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Follower{
		path:    path,
		poll:    poll,
		onLine:  onLine,
		onError: onError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start records the current size of the file and begins watching it.
func (f *Follower) Start() error {
	info, err := os.Stat(f.path)
	switch {
	case err == nil:
		f.offset = info.Size()
	case errors.Is(err, fs.ErrNotExist):
		f.offset = 0
	default:
		return fmt.Errorf("stat %s: %w", f.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(f.path); addErr != nil {
			log.Printf("[LogFollow] watch %s unavailable, polling only: %v", f.path, addErr)
			_ = watcher.Close()
			watcher = nil
		}
	} else {
		log.Printf("[LogFollow] fsnotify unavailable, polling only: %v", err)
		watcher = nil
	}

	f.started = true
	go f.run(watcher)
	return nil
}

// Stop terminates the follower and waits for its goroutine to exit. It is
// safe to call more than once, but not from inside onLine or onError.
func (f *Follower) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	if f.started {
		<-f.done
	}
}

// Done is closed once the follower goroutine has exited.
func (f *Follower) Done() <-chan struct{} {
	return f.done
}

func (f *Follower) run(watcher *fsnotify.Watcher) {
	defer close(f.done)
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
	}

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-f.stop:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if !f.step() {
					return
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[LogFollow] watcher error on %s: %v", f.path, err)
		case <-ticker.C:
			if !f.step() {
				return
			}
		}
	}
}

// step reads any new data and reports false if the follower must exit.
func (f *Follower) step() bool {
	if err := f.readNew(); err != nil {
		select {
		case <-f.stop:
		default:
			if f.onError != nil {
				f.onError(err)
			}
		}
		return false
	}
	return true
}

func (f *Follower) readNew() error {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Rotated away; pick the file up again when it reappears.
			return nil
		}
		return fmt.Errorf("stat %s: %w", f.path, err)
	}

	size := info.Size()
	if size < f.offset {
		f.offset = 0
		f.partial = nil
	}
	if size == f.offset {
		return nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer func() { _ = file.Close() }()

	buf := make([]byte, readChunk)
	for f.offset < size {
		select {
		case <-f.stop:
			return nil
		default:
		}

		want := size - f.offset
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		n, err := file.ReadAt(buf[:want], f.offset)
		if n > 0 {
			f.offset += int64(n)
			f.consume(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", f.path, err)
		}
	}
	return nil
}

func (f *Follower) consume(chunk []byte) {
	data := chunk
	if len(f.partial) > 0 {
		data = append(f.partial, chunk...)
		f.partial = nil
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := trimCR(string(data[:i]))
		data = data[i+1:]
		if f.onLine != nil {
			f.onLine(line)
		}
	}

	if len(data) == 0 {
		return
	}
	if len(data) >= maxPartial {
		if f.onLine != nil {
			f.onLine(trimCR(string(data)))
		}
		return
	}
	f.partial = append([]byte(nil), data...)
}

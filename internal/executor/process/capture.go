package process

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// lineCapture drains one output pipe into an ordered list of lines.
//
// The reader goroutine starts in startCapture and runs independently of the
// process wait. Lines are split on '\n' with no length cap; a trailing
// partial line is kept. Each line is trimmed of surrounding whitespace.
type lineCapture struct {
	src  *os.File
	done chan struct{}

	mu    sync.Mutex
	lines []string
	err   error
}

func startCapture(src *os.File) *lineCapture {
	c := &lineCapture{src: src, done: make(chan struct{})}
	go c.drain()
	return c
}

func (c *lineCapture) drain() {
	defer close(c.done)

	r := bufio.NewReader(c.src)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			c.mu.Lock()
			c.lines = append(c.lines, strings.TrimSpace(line))
			c.mu.Unlock()
		}
		if err != nil {
			// EOF is the normal end; ErrClosed means we gave up on the pipe.
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// snapshot returns the lines captured so far and the read error, if any.
func (c *lineCapture) snapshot() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out, c.err
}

// close releases the read end, unblocking a reader stuck on a pipe that a
// surviving descendant still holds open.
func (c *lineCapture) close() {
	_ = c.src.Close()
}

// joinCaptures waits for all readers to reach end of stream, bounded by
// grace. Readers still running when grace expires are cut off by closing
// their pipes. It reports whether every reader finished on its own.
func joinCaptures(grace time.Duration, captures ...*lineCapture) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	complete := true
	for _, c := range captures {
		if !complete {
			break
		}
		select {
		case <-c.done:
		case <-timer.C:
			complete = false
		}
	}

	for _, c := range captures {
		c.close()
	}
	if !complete {
		// Closing unblocks the readers; wait for them so snapshots are final.
		for _, c := range captures {
			select {
			case <-c.done:
			case <-time.After(grace):
			}
		}
	}
	return complete
}

package device

import (
	"bufio"
	"context"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// LineReader reads tag UIDs, one per line, from a byte stream such as a
// USB-serial reader bridge. Decimal UIDs are converted to hex tag codes;
// anything else is normalized as-is. Each ReadTag call registers its own
// result channel and a line goes to the oldest registered call. Lines that
// arrive while nobody is registered are discarded, so a stale tap never
// answers a later request.
type LineReader struct {
	logger *log.Logger

	mu      sync.Mutex
	waiters []chan string
	closed  chan struct{}
	err     error
}

func NewLineReader(r io.Reader, logger *log.Logger) *LineReader {
	lr := &LineReader{
		logger: logger,
		closed: make(chan struct{}),
	}
	go lr.scan(r)
	return lr
}

func (lr *LineReader) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tag := parseTagLine(sc.Text())
		if tag == "" {
			continue
		}
		lr.mu.Lock()
		var w chan string
		if len(lr.waiters) > 0 {
			w = lr.waiters[0]
			lr.waiters = lr.waiters[1:]
		}
		lr.mu.Unlock()
		if w == nil {
			lr.logger.Printf("tag reader: discarding unsolicited tag=%s", tag)
			continue
		}
		// Buffered by one and popped under mu, so this never blocks.
		w <- tag
	}
	lr.mu.Lock()
	lr.err = sc.Err()
	lr.mu.Unlock()
	close(lr.closed)
}

func parseTagLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if uid, err := strconv.ParseUint(line, 10, 64); err == nil && len(line) > types.TagCodeLen {
		return types.TagCodeFromUID(uid)
	}
	return types.NormalizeTagCode(line)
}

func (lr *LineReader) ReadTag(ctx context.Context) (string, error) {
	w := make(chan string, 1)
	lr.mu.Lock()
	lr.waiters = append(lr.waiters, w)
	lr.mu.Unlock()

	select {
	case tag := <-w:
		return tag, nil
	case <-lr.closed:
		if !lr.unregister(w) {
			return <-w, nil
		}
		lr.mu.Lock()
		defer lr.mu.Unlock()
		if lr.err != nil {
			return "", lr.err
		}
		return "", ErrClosed
	case <-ctx.Done():
		if !lr.unregister(w) {
			return <-w, nil
		}
		return "", ctx.Err()
	}
}

// unregister drops w from the queue. False means scan already claimed it
// and a tag is in, or about to be in, w.
func (lr *LineReader) unregister(w chan string) bool {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	for i, c := range lr.waiters {
		if c == w {
			lr.waiters = append(lr.waiters[:i], lr.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Available is false once the underlying stream has ended.
func (lr *LineReader) Available() bool {
	select {
	case <-lr.closed:
		return false
	default:
		return true
	}
}

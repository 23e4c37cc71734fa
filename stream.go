package forge

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cespare/xxhash"
)

// StreamFunc is a handler's "stream continuation": it receives the
// raw connection (ownership fully transferred from the worker) and a
// stop predicate it must poll between frames. Response.Stream is nil
// for an ordinary buffered response and set only when a handler calls
// Context.TakeOverSocket.
type StreamFunc func(conn net.Conn, shouldStop func() bool) error

// ErrFrameUnchanged is returned by a FrameProducer to skip a cycle
// without writing anything, for frame-differencing producers.
var ErrFrameUnchanged = errors.New("forge: frame unchanged")

// Frame is one multipart/x-mixed-replace part: the body bytes plus the
// headers to precede them. Content-Length is added automatically if
// absent; no Content-Type is added, so a producer that wants one sets
// it in Headers.
type Frame struct {
	Headers map[string]string
	Data    []byte
}

// FrameProducer yields successive frames for a streaming response. It
// returns ErrFrameUnchanged to signal "no change, skip this cycle" and
// any other non-nil error to stop the stream.
type FrameProducer interface {
	NextFrame() (*Frame, error)
}

// StreamStats accumulates the counters statsLog is handed every 5
// seconds: frames sent, frames skipped, bytes written.
type StreamStats struct {
	FramesSent    uint64
	FramesSkipped uint64
	BytesWritten  uint64
}

// MJPEGStream builds a StreamFunc that pushes frames from producer as
// a multipart/x-mixed-replace body:
//
//  1. writes the status line, multipart headers, and a blank line;
//  2. loops, acquiring a frame each cycle and skipping unchanged ones;
//  3. stops on a fatal producer error, a failed write, shouldStop()
//     becoming true, or the deadline elapsing;
//  4. rate-limits to fps, sleeping on a cancellation-aware timer so
//     shutdown doesn't stall for a full frame interval;
//  5. logs StreamStats every 5 seconds via statsLog (nil disables it).
func MJPEGStream(producer FrameProducer, boundary string, fps float64, deadline time.Duration, statsLog func(StreamStats)) StreamFunc {
	if fps <= 0 {
		fps = 15
	}
	interval := time.Duration(float64(time.Second) / fps)

	return func(conn net.Conn, shouldStop func() bool) error {
		header := "HTTP/1.1 200 OK\r\n" +
			"Content-Type: multipart/x-mixed-replace; boundary=" + boundary + "\r\n" +
			"Connection: close\r\n\r\n"
		if _, err := conn.Write([]byte(header)); err != nil {
			return err
		}

		var stats StreamStats
		var lastHash uint64
		haveLastHash := false

		deadlineAt := time.Time{}
		if deadline > 0 {
			deadlineAt = time.Now().Add(deadline)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		statsTicker := time.NewTicker(5 * time.Second)
		defer statsTicker.Stop()

		// pollInterval bounds how long shutdown can stall waiting out a
		// frame period: shouldStop is re-checked at this resolution
		// instead of only after the full interval ticker fires.
		pollInterval := interval
		if pollInterval > 100*time.Millisecond {
			pollInterval = 100 * time.Millisecond
		}
		stopPoll := time.NewTicker(pollInterval)
		defer stopPoll.Stop()

		for {
			if shouldStop() {
				return nil
			}
			if !deadlineAt.IsZero() && time.Now().After(deadlineAt) {
				return nil
			}

			frame, err := producer.NextFrame()
			switch {
			case err == ErrFrameUnchanged:
				stats.FramesSkipped++
			case err != nil:
				return err
			default:
				h := xxhash.Sum64(frame.Data)
				if haveLastHash && h == lastHash {
					stats.FramesSkipped++
				} else {
					if err := writeFrame(conn, boundary, frame); err != nil {
						return err
					}
					stats.FramesSent++
					stats.BytesWritten += uint64(len(frame.Data))
					lastHash, haveLastHash = h, true
				}
			}

		waitFrame:
			for {
				select {
				case <-ticker.C:
					break waitFrame
				case <-stopPoll.C:
					if shouldStop() {
						return nil
					}
				}
			}

			select {
			case <-statsTicker.C:
				if statsLog != nil {
					statsLog(stats)
				}
			default:
			}
		}
	}
}

func writeFrame(conn net.Conn, boundary string, frame *Frame) error {
	var buf []byte
	buf = append(buf, "--"...)
	buf = append(buf, boundary...)
	buf = append(buf, "\r\n"...)
	for k, v := range frame.Headers {
		buf = append(buf, k...)
		buf = append(buf, ": "...)
		buf = append(buf, v...)
		buf = append(buf, "\r\n"...)
	}
	if _, ok := frame.Headers["Content-Length"]; !ok {
		buf = append(buf, fmt.Sprintf("Content-Length: %d\r\n", len(frame.Data))...)
	}
	buf = append(buf, "\r\n"...)
	buf = append(buf, frame.Data...)
	buf = append(buf, "\r\n"...)

	_, err := conn.Write(buf)
	return err
}

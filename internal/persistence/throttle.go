package persistence

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// throttledWriter limits the write throughput of an image file.
type throttledWriter struct {
	w   io.Writer
	lim *rate.Limiter
}

// NewThrottledWriter limits writes to w to bytesPerSec. A non-positive limit
// returns w unchanged.
func NewThrottledWriter(w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}
	return &throttledWriter{
		w:   w,
		lim: rate.NewLimiter(rate.Limit(bytesPerSec), int(min(bytesPerSec, 1<<30))),
	}
}

func (tw *throttledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := min(len(p), tw.lim.Burst())
		if err := tw.lim.WaitN(context.Background(), chunk); err != nil {
			return written, err
		}
		n, err := tw.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]
	}
	return written, nil
}

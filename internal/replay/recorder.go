package replay

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"roomba-drone/internal/rangefinder"
	"roomba-drone/internal/scan"
)

// Recorder is a rangefinder.Device that writes every grabbed batch to a log.
type Recorder struct {
	rangefinder.Device

	path   string
	w      *Writer
	clock  clock.Clock
	logger *zap.SugaredLogger
}

var _ rangefinder.Device = (*Recorder)(nil)

// NewRecorder creates the log at path and wraps dev.
func NewRecorder(dev rangefinder.Device, path string, clk clock.Clock, logger *zap.SugaredLogger) (*Recorder, error) {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	w, err := CreateWriter(path, clk.Now())
	if err != nil {
		return nil, err
	}
	return &Recorder{Device: dev, path: path, w: w, clock: clk, logger: logger}, nil
}

// GrabScan delegates to the wrapped device. Batches returned alongside
// rangefinder.ErrTimeout are recorded too; a failed log write is only logged.
func (r *Recorder) GrabScan(maxSamples int, timeout time.Duration) ([]scan.Sample, error) {
	batch, err := r.Device.GrabScan(maxSamples, timeout)
	if err != nil && !errors.Is(err, rangefinder.ErrTimeout) {
		return batch, err
	}
	if r.w == nil {
		// Closed by a failed connect attempt; start the log over.
		w, werr := CreateWriter(r.path, r.clock.Now())
		if werr != nil {
			r.logger.Warnw("scan record reopen failed", "path", r.path, "error", werr)
			return batch, err
		}
		r.w = w
	}
	if werr := r.w.WriteBatch(r.clock.Now(), batch); werr != nil {
		r.logger.Warnw("scan record write failed", "error", werr)
	}
	return batch, err
}

// Close flushes the log and closes the wrapped device.
func (r *Recorder) Close() error {
	var werr error
	if r.w != nil {
		werr = r.w.Close()
		r.w = nil
	}
	return errors.Join(r.Device.Close(), werr)
}

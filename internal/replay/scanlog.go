// Package replay records range-finder scan batches to a text log and plays
// them back as a rangefinder.Device.
package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"roomba-drone/internal/scan"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<hex>
//   where t_ns is nanoseconds since START and hex is the batch, 7 bytes per
//   sample: angle q14 (LE uint16), distance q2 (LE uint32), quality.
//   An empty hex field is an empty batch.

const sampleLen = 7

type Record struct {
	At time.Duration
	// Start marks a START line; Batch is nil.
	Start bool
	Batch []scan.Sample
}

func encodeBatch(batch []scan.Sample) []byte {
	out := make([]byte, len(batch)*sampleLen)
	for i, s := range batch {
		b := out[i*sampleLen:]
		binary.LittleEndian.PutUint16(b[0:2], s.AngleQ14)
		binary.LittleEndian.PutUint32(b[2:6], s.DistQ2)
		b[6] = s.Quality
	}
	return out
}

func decodeBatch(b []byte) ([]scan.Sample, error) {
	if len(b)%sampleLen != 0 {
		return nil, fmt.Errorf("batch payload length %d is not a multiple of %d", len(b), sampleLen)
	}
	out := make([]scan.Sample, 0, len(b)/sampleLen)
	for i := 0; i+sampleLen <= len(b); i += sampleLen {
		out = append(out, scan.Sample{
			AngleQ14: binary.LittleEndian.Uint16(b[i : i+2]),
			DistQ2:   binary.LittleEndian.Uint32(b[i+2 : i+6]),
			Quality:  b[i+6],
		})
	}
	return out, nil
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	// A full rotation of 8192 samples is ~115 KiB of hex.
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("invalid replay line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		hexStr := strings.ReplaceAll(strings.TrimSpace(line[comma+1:]), " ", "")
		if tsStr == "" {
			return nil, fmt.Errorf("invalid replay line (empty timestamp): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}

		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("invalid replay hex payload: %w", err)
		}
		batch, err := decodeBatch(b)
		if err != nil {
			return nil, fmt.Errorf("invalid replay payload: %w", err)
		}

		recs = append(recs, Record{At: time.Duration(tsNs), Batch: batch})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile loads every record of the log at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

// CreateWriter truncates path and writes the START marker. now is the origin
// for batch timestamps.
func CreateWriter(path string, now time.Time) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: now}, nil
}

func (ww *Writer) WriteBatch(now time.Time, batch []scan.Sample) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(encodeBatch(batch)))
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

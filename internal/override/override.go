// Package override reads manual motion commands from a line-oriented input
// without ever blocking the control loop.
package override

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"roomba-drone/internal/motion"
)

// ErrTerminate is returned by Poll when the operator asked to quit.
var ErrTerminate = errors.New("override: terminate requested")

// Prompt is shown before the operator types a command.
const Prompt = "Input Command: "

// Reader tokenizes its input on whitespace in a background goroutine.
type Reader struct {
	tokens chan string
	done   bool

	prompt      io.Writer
	interactive bool
	prompted    bool

	logger *zap.SugaredLogger
}

// NewReader starts reading in. The prompt is written to prompt only when
// interactive is set; see IsTerminal.
func NewReader(in io.Reader, prompt io.Writer, interactive bool, logger *zap.SugaredLogger) *Reader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Reader{
		tokens:      make(chan string, 16),
		prompt:      prompt,
		interactive: interactive && prompt != nil,
		logger:      logger,
	}
	go r.scan(in)
	return r
}

func (r *Reader) scan(in io.Reader) {
	defer close(r.tokens)
	s := bufio.NewScanner(in)
	s.Split(bufio.ScanWords)
	for s.Scan() {
		r.tokens <- s.Text()
	}
	if err := s.Err(); err != nil {
		r.logger.Warnw("override input closed", "error", err)
	}
}

// Poll returns at most one pending command. ok is false when nothing usable
// is pending. A quit token yields ErrTerminate.
func (r *Reader) Poll() (cmd motion.Command, ok bool, err error) {
	if r.done {
		return 0, false, nil
	}
	if r.interactive && !r.prompted {
		r.prompted = true
		fmt.Fprint(r.prompt, Prompt)
	}

	var tok string
	select {
	case t, open := <-r.tokens:
		if !open {
			r.done = true
			r.logger.Debugw("override input exhausted")
			return 0, false, nil
		}
		tok = t
	default:
		return 0, false, nil
	}

	switch strings.ToLower(tok) {
	case "q", "quit":
		return 0, false, ErrTerminate
	}
	c, known := motion.ParseCommand(tok)
	if !known {
		r.logger.Warnw("unrecognized override command", "token", tok)
		return 0, false, nil
	}
	r.prompted = false
	r.logger.Infow("override command", "command", c.String())
	return c, true, nil
}

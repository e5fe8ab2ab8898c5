package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/nao1215/surveilscope/internal/event"
)

// DefaultMaxLineSize bounds one capture line. Page events carry whole documents.
const DefaultMaxLineSize = 16 << 20

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// CaptureStats counts what a capture contained.
type CaptureStats struct {
	// Lines is the number of non-blank, non-comment lines read.
	Lines int
	// Events is the number of lines decoded into events.
	Events int
	// Malformed is the number of lines that failed to decode.
	Malformed int
}

// CaptureReader decodes newline-delimited event documents.
// Blank lines and lines starting with '#' are ignored.
// Malformed lines are logged, counted and skipped.
type CaptureReader struct {
	decoder     *event.Decoder
	maxLineSize int
	logger      *slog.Logger
	onMalformed func(line int, err error)
}

// CaptureOption configures a CaptureReader.
type CaptureOption func(*CaptureReader)

// WithMaxLineSize sets the largest accepted line in bytes.
func WithMaxLineSize(n int) CaptureOption {
	return func(cr *CaptureReader) {
		if n > 0 {
			cr.maxLineSize = n
		}
	}
}

// WithCaptureLogger sets the logger used for skipped lines.
func WithCaptureLogger(logger *slog.Logger) CaptureOption {
	return func(cr *CaptureReader) {
		cr.logger = logger
	}
}

// WithMalformedHandler registers fn to be called for every skipped line.
func WithMalformedHandler(fn func(line int, err error)) CaptureOption {
	return func(cr *CaptureReader) {
		cr.onMalformed = fn
	}
}

// NewCaptureReader compiles the event schema and returns a reader.
func NewCaptureReader(opts ...CaptureOption) (*CaptureReader, error) {
	decoder, err := event.NewDecoder()
	if err != nil {
		return nil, err
	}
	cr := &CaptureReader{
		decoder:     decoder,
		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(cr)
	}
	if cr.logger == nil {
		cr.logger = slog.Default()
	}
	return cr, nil
}

// Read decodes r line by line and calls fn for each event in order.
// An error from fn or a read failure stops the replay and is returned.
func (cr *CaptureReader) Read(ctx context.Context, r io.Reader, fn func(event.Event) error) (CaptureStats, error) {
	var stats CaptureStats
	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, readErr := cr.readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, ErrLineTooLong) {
			return stats, fmt.Errorf("failed to read capture line %d: %w", lineNo, readErr)
		}

		if errors.Is(readErr, ErrLineTooLong) {
			stats.Lines++
			cr.malformed(ctx, &stats, lineNo, readErr)
			continue
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && trimmed[0] != '#' {
			stats.Lines++
			ev, err := cr.decoder.Decode(trimmed)
			if err != nil {
				cr.malformed(ctx, &stats, lineNo, err)
			} else {
				stats.Events++
				if err := fn(ev); err != nil {
					return stats, err
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return stats, nil
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed and reported as ErrLineTooLong.
func (cr *CaptureReader) readLine(br *bufio.Reader) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > cr.maxLineSize+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			if errors.Is(err, io.EOF) {
				return nil, errors.Join(ErrLineTooLong, io.EOF)
			}
			return nil, ErrLineTooLong
		}
		return line, err
	}
}

func (cr *CaptureReader) malformed(ctx context.Context, stats *CaptureStats, lineNo int, err error) {
	stats.Malformed++
	cr.logger.DebugContext(ctx, "skipping malformed capture line", "line", lineNo, "error", err)
	if cr.onMalformed != nil {
		cr.onMalformed(lineNo, err)
	}
}

// OpenCapture opens a capture file, transparently decompressing zstd captures.
func OpenCapture(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // capture path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(len(zstdMagic))
	if err != nil || !bytes.Equal(head, zstdMagic) {
		return &captureFile{Reader: br, closers: []func() error{f.Close}}, nil
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read compressed capture %s: %w", path, err)
	}
	return &captureFile{
		Reader: zr,
		closers: []func() error{
			func() error { zr.Close(); return nil },
			f.Close,
		},
	}, nil
}

type captureFile struct {
	io.Reader
	closers []func() error
}

func (c *captureFile) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

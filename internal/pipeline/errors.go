package pipeline

import "errors"

// ErrLineTooLong is reported for a capture line larger than the reader's limit.
// The line is skipped like any other malformed line.
var ErrLineTooLong = errors.New("capture line exceeds size limit")

// ErrNoReport is returned by SaveStep when no report was generated.
var ErrNoReport = errors.New("no report to save")

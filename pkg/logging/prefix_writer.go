package logging

import (
	"bytes"
	"io"
)

// PrefixWriter wraps an io.Writer and prepends a prefix to every line.
// Partial lines are buffered until their newline arrives.
type PrefixWriter struct {
	prefix  []byte
	writer  io.Writer
	pending bytes.Buffer
}

// NewPrefixWriter creates a new PrefixWriter.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{prefix: []byte(prefix), writer: w}
}

// Write implements io.Writer. It reports len(p) consumed even though flushing
// happens per complete line.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.pending.Write(p)

	for {
		buffered := pw.pending.Bytes()
		nl := bytes.IndexByte(buffered, '\n')
		if nl < 0 {
			break
		}
		line := buffered[:nl+1]
		if _, err := pw.writer.Write(pw.prefix); err != nil {
			return 0, err
		}
		if _, err := pw.writer.Write(line); err != nil {
			return 0, err
		}
		pw.pending.Next(nl + 1)
	}

	return len(p), nil
}

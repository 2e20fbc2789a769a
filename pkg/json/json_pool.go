// Package json provides JSON serialization for spawnpool reports and
// snapshots, backed by goccy/go-json with pooled buffers.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// bufferPool holds reusable buffers for MarshalToBuffer.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// NewEncoder returns an encoder for w that does not escape HTML. A non-empty
// indent enables pretty printing.
func NewEncoder(w io.Writer, indent string) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc
}

// MarshalToWriter encodes v to w followed by a newline.
func MarshalToWriter(w io.Writer, v interface{}, indent string) error {
	return NewEncoder(w, indent).Encode(v)
}

// MarshalToBuffer marshals v to a pooled buffer. The caller returns the
// buffer with PutBuffer.
func MarshalToBuffer(v interface{}) (*bytes.Buffer, error) {
	buf := GetBuffer()
	if err := NewEncoder(buf, "").Encode(v); err != nil {
		PutBuffer(buf)
		return nil, err
	}
	return buf, nil
}

// StreamingEncoder writes a sequence of values either as line-delimited
// JSON or as a single JSON array. Each value reaches the writer in a single
// Write call, so lines from concurrent writers sharing w do not interleave.
type StreamingEncoder struct {
	writer      io.Writer
	firstRecord bool
	isArray     bool
	count       int
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	se := &StreamingEncoder{
		writer:      w,
		firstRecord: true,
		isArray:     isArray,
	}

	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			return nil, err
		}
	}

	return se, nil
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray {
		if !se.firstRecord {
			if _, err := se.writer.Write([]byte{','}); err != nil {
				return err
			}
		}
		se.firstRecord = false
	}

	buf, err := MarshalToBuffer(v)
	if err != nil {
		return err
	}
	defer PutBuffer(buf)
	if _, err := se.writer.Write(buf.Bytes()); err != nil {
		return err
	}
	se.count++
	return nil
}

// Count returns the number of values encoded so far.
func (se *StreamingEncoder) Count() int {
	return se.count
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		if _, err := se.writer.Write([]byte{']', '\n'}); err != nil {
			return err
		}
	}
	return nil
}

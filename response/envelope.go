// Package response describes the result a session attaches to a request:
// an in-memory view, an error, a file range or a stream.
package response

import (
	"errors"
	"fmt"
	"io"
)

// Kind identifies the envelope variant.
type Kind int

const (
	KindNone Kind = iota
	KindData
	KindError
	KindFile
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindError:
		return "error"
	case KindFile:
		return "file"
	case KindStream:
		return "stream"
	}
	return "none"
}

// Envelope is a tagged description of a response. It is immutable once
// attached to a request; requests keep a reference, never a payload copy.
type Envelope struct {
	Kind Kind

	// Data is the view returned for KindData.
	Data []byte

	// Code and Message describe a KindError response.
	Code    int
	Message string

	// File and Size describe a KindFile response; File is read with ReadAt from offset 0.
	File io.ReaderAt
	Size int64

	// Stream is the producer of a KindStream response.
	Stream Stream
}

// NewData returns a data envelope over data.
func NewData(data []byte) *Envelope {
	return &Envelope{Kind: KindData, Data: data}
}

// NewError returns an error envelope.
func NewError(code int, message string) *Envelope {
	return &Envelope{Kind: KindError, Code: code, Message: message}
}

// NewFile returns a file envelope delivering size bytes of file.
func NewFile(file io.ReaderAt, size int64) *Envelope {
	return &Envelope{Kind: KindFile, File: file, Size: size}
}

// NewStream returns a stream envelope.
func NewStream(stream Stream) *Envelope {
	return &Envelope{Kind: KindStream, Stream: stream}
}

var (
	ErrInvalidEnvelope = errors.New("invalid response envelope")
)

// Validate checks the envelope is a well formed variant.
func (e *Envelope) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil", ErrInvalidEnvelope)
	}
	switch e.Kind {
	case KindData, KindError:
		return nil
	case KindFile:
		if e.File == nil {
			return fmt.Errorf("%w: file envelope without file", ErrInvalidEnvelope)
		}
		if e.Size < 0 {
			return fmt.Errorf("%w: negative file size %d", ErrInvalidEnvelope, e.Size)
		}
		return nil
	case KindStream:
		switch e.Stream.(type) {
		case ActiveStream, PassiveStream:
			return nil
		case nil:
			return fmt.Errorf("%w: stream envelope without stream", ErrInvalidEnvelope)
		}
		return fmt.Errorf("%w: unsupported stream %T", ErrInvalidEnvelope, e.Stream)
	}
	return fmt.Errorf("%w: kind %v", ErrInvalidEnvelope, e.Kind)
}

// Error is the error a consumer receives when reading a KindError response.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service error %d", e.Code)
	}
	return fmt.Sprintf("service error %d: %s", e.Code, e.Message)
}

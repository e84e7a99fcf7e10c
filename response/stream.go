package response

import (
	"errors"
	"io"
	"sync"

	"github.com/viant/ssi/buffer"
)

// Mode selects how a stream hands data to the consumer.
type Mode int

const (
	// Active streams are pulled a chunk at a time by the request.
	Active Mode = iota
	// Passive streams fill the consumer's buffer directly.
	Passive
)

func (m Mode) String() string {
	if m == Passive {
		return "passive"
	}
	return "active"
}

// Stream is a response producer; it must also implement ActiveStream or PassiveStream.
type Stream interface {
	Mode() Mode
}

// ActiveStream hands out owned chunks.
type ActiveStream interface {
	Stream

	// GetChunk returns the next chunk, ideally about want bytes long. eof is
	// true when no data follows the returned chunk, which may then be nil.
	// A nil chunk without eof and without err is a producer fault.
	GetChunk(want int) (chunk buffer.Handle, eof bool, err error)
}

// PassiveStream copies straight into the consumer's buffer.
type PassiveStream interface {
	Stream

	// FillInto writes up to len(p) bytes into p. n == 0 with eof false means
	// no data is available yet, which is not an error.
	FillInto(p []byte) (n int, eof bool, err error)
}

// ChunkStream is an ActiveStream over a fixed sequence of chunks.
type ChunkStream struct {
	mu       sync.Mutex
	chunks   [][]byte
	recycled int
}

// NewChunkStream returns an active stream delivering chunks in order.
func NewChunkStream(chunks ...[]byte) *ChunkStream {
	return &ChunkStream{chunks: chunks}
}

// Mode implements Stream.
func (s *ChunkStream) Mode() Mode { return Active }

// GetChunk implements ActiveStream.
func (s *ChunkStream) GetChunk(_ int) (buffer.Handle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return nil, true, nil
	}
	next := s.chunks[0]
	s.chunks = s.chunks[1:]
	return &countedChunk{data: next, stream: s}, len(s.chunks) == 0, nil
}

// Recycled returns how many chunks the consumer released.
func (s *ChunkStream) Recycled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recycled
}

type countedChunk struct {
	data   []byte
	stream *ChunkStream
}

func (c *countedChunk) Bytes() []byte { return c.data }

func (c *countedChunk) Recycle() {
	if c.stream == nil {
		return
	}
	c.stream.mu.Lock()
	c.stream.recycled++
	c.stream.mu.Unlock()
	c.stream = nil
	c.data = nil
}

// ReaderStream is an ActiveStream pulling pooled chunks from an io.Reader.
type ReaderStream struct {
	reader io.Reader
	pool   *buffer.Pool
}

// NewReaderStream returns an active stream reading r into buffers from pool.
func NewReaderStream(r io.Reader, pool *buffer.Pool) *ReaderStream {
	if pool == nil {
		pool = buffer.NewPool(0)
	}
	return &ReaderStream{reader: r, pool: pool}
}

// Mode implements Stream.
func (s *ReaderStream) Mode() Mode { return Active }

// GetChunk implements ActiveStream.
func (s *ReaderStream) GetChunk(want int) (buffer.Handle, bool, error) {
	buf := s.pool.Get()
	if want > 0 && want < len(buf.Bytes()) {
		buf.SetLen(want)
	}
	n, err := io.ReadFull(s.reader, buf.Bytes())
	switch {
	case err == nil:
		buf.SetLen(n)
		return buf, false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if n == 0 {
			buf.Recycle()
			return nil, true, nil
		}
		buf.SetLen(n)
		return buf, true, nil
	}
	buf.Recycle()
	return nil, false, err
}

// PassiveReader is a PassiveStream over an io.Reader.
type PassiveReader struct {
	reader io.Reader
}

// NewPassiveReader returns a passive stream filling from r.
func NewPassiveReader(r io.Reader) *PassiveReader {
	return &PassiveReader{reader: r}
}

// Mode implements Stream.
func (s *PassiveReader) Mode() Mode { return Passive }

// FillInto implements PassiveStream.
func (s *PassiveReader) FillInto(p []byte) (int, bool, error) {
	n, err := s.reader.Read(p)
	if errors.Is(err, io.EOF) {
		return n, true, nil
	}
	return n, false, err
}

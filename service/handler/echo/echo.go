// Package echo provides a session handler answering each request with its own
// payload. Payload prefixes select other response shapes:
//
//	error:<code>:<message>   error response
//	stream:<data>            active stream of ChunkSize chunks
//	passive:<data>           passive stream
package echo

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/response"
	"github.com/viant/ssi/session"
)

const (
	PrefixError   = "error:"
	PrefixStream  = "stream:"
	PrefixPassive = "passive:"
)

// CodeUnavailable is returned for requests reaching an unprovisioned session.
const CodeUnavailable = 503

// Handler opens echo sessions.
type Handler struct {
	ChunkSize int
	Logger    logr.Logger
}

// New creates an echo handler.
func New(chunkSize int, logger logr.Logger) *Handler {
	if chunkSize <= 0 {
		chunkSize = 4
	}
	return &Handler{ChunkSize: chunkSize, Logger: logger}
}

// Open implements memory.Handler.
func (h *Handler) Open(_ context.Context, res *resource.Resource, base *session.Base) (session.Session, error) {
	return &Session{Base: base, handler: h, user: res.User, attached: map[session.Request]bool{}}, nil
}

// Session echoes payloads.
type Session struct {
	*session.Base
	handler *Handler
	user    string

	mu        sync.Mutex
	attached  map[session.Request]bool
	completed int
	canceled  int
}

// ProcessRequest implements session.Session. The response is attached
// before returning, which also binds the request.
func (s *Session) ProcessRequest(req session.Request) {
	if !s.Attach() {
		req.Respond(response.NewError(CodeUnavailable, "session "+s.Name()+" is unprovisioned"))
		return
	}
	s.mu.Lock()
	s.attached[req] = true
	s.mu.Unlock()

	payload := append([]byte(nil), req.Payload()...)
	req.ReleasePayload()
	envelope := s.respond(payload)
	if !req.Respond(envelope) {
		s.handler.Logger.Info("response not accepted", "session", s.Name(), "request", req.ID())
	}
}

func (s *Session) respond(payload []byte) *response.Envelope {
	text := string(payload)
	switch {
	case strings.HasPrefix(text, PrefixError):
		code, message := parseError(strings.TrimPrefix(text, PrefixError))
		return response.NewError(code, message)
	case strings.HasPrefix(text, PrefixStream):
		return response.NewStream(response.NewChunkStream(split(payload[len(PrefixStream):], s.handler.ChunkSize)...))
	case strings.HasPrefix(text, PrefixPassive):
		return response.NewStream(response.NewPassiveReader(bytes.NewReader(payload[len(PrefixPassive):])))
	}
	return response.NewData(payload)
}

// RequestFinished implements session.Session.
func (s *Session) RequestFinished(req session.Request, canceled bool) {
	s.mu.Lock()
	attached := s.attached[req]
	delete(s.attached, req)
	if canceled {
		s.canceled++
	} else {
		s.completed++
	}
	s.mu.Unlock()
	if attached {
		s.Detach()
	}
}

// Counts returns how many requests completed and were canceled.
func (s *Session) Counts() (completed, canceled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed, s.canceled
}

func parseError(spec string) (int, string) {
	codeText, message, _ := strings.Cut(spec, ":")
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return 500, spec
	}
	return code, message
}

func split(data []byte, size int) [][]byte {
	var ret [][]byte
	for len(data) > size {
		ret = append(ret, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		ret = append(ret, data)
	}
	return ret
}

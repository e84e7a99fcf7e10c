// Package storage provides a session handler serving objects from any afs
// supported location. The request payload is a path relative to the base URL
// registered for the resource.
//
// Small objects are answered with a data response, large local files with a
// file response read in place, and large remote objects with an active
// stream.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/ssi/buffer"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/response"
	"github.com/viant/ssi/session"
)

// Error codes carried by error responses.
const (
	CodeBadRequest  = 400
	CodeNotFound    = 404
	CodeUnavailable = 503
	CodeInternal    = 500
)

// DefaultThreshold is the size above which objects are not loaded into memory.
const DefaultThreshold = 1 << 20

// Handler opens storage sessions.
type Handler struct {
	fs        afs.Service
	baseURL   string
	threshold int64
	buffers   *buffer.Pool
	logger    logr.Logger
	options   []storage.Option
}

// Option customises the handler.
type Option func(*Handler)

// WithThreshold sets the in-memory size limit.
func WithThreshold(size int64) Option {
	return func(h *Handler) {
		h.threshold = size
	}
}

// WithBuffers sets the pool stream chunks are taken from.
func WithBuffers(pool *buffer.Pool) Option {
	return func(h *Handler) {
		h.buffers = pool
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithStorageOptions sets options passed to every storage call, e.g. an
// embed.FS for embed:// locations.
func WithStorageOptions(options ...storage.Option) Option {
	return func(h *Handler) {
		h.options = options
	}
}

// WithFS sets the storage service.
func WithFS(fs afs.Service) Option {
	return func(h *Handler) {
		h.fs = fs
	}
}

// New creates a handler serving objects under baseURL.
func New(baseURL string, opts ...Option) *Handler {
	ret := &Handler{baseURL: baseURL, threshold: DefaultThreshold, logger: logr.Discard()}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.buffers == nil {
		ret.buffers = buffer.NewPool(0)
	}
	return ret
}

// Open implements memory.Handler; it fails when the base location does not exist.
func (h *Handler) Open(ctx context.Context, res *resource.Resource, base *session.Base) (session.Session, error) {
	exists, err := h.fs.Exists(ctx, h.baseURL, h.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to check %v: %w", h.baseURL, err)
	}
	if !exists {
		return nil, resource.Fail(resource.CodeNotFound, "%v does not exist", h.baseURL)
	}
	return &Session{Base: base, handler: h, calls: map[session.Request]*call{}}, nil
}

// Session serves one resource.
type Session struct {
	*session.Base
	handler *Handler

	mu    sync.Mutex
	calls map[session.Request]*call
}

// call tracks one request between dispatch and finish.
type call struct {
	finished bool
	closer   io.Closer
}

// ProcessRequest implements session.Session; the object is fetched asynchronously.
func (s *Session) ProcessRequest(req session.Request) {
	req.Bind()
	if !s.Attach() {
		req.Respond(response.NewError(CodeUnavailable, "session "+s.Name()+" is unprovisioned"))
		return
	}
	location := strings.TrimSpace(string(req.Payload()))
	req.ReleasePayload()
	c := &call{}
	s.mu.Lock()
	s.calls[req] = c
	s.mu.Unlock()
	go s.serve(req, c, location)
}

func (s *Session) serve(req session.Request, c *call, location string) {
	envelope, closer := s.fetch(context.Background(), location)
	s.mu.Lock()
	if c.finished {
		s.mu.Unlock()
		s.close(closer)
		return
	}
	accepted := req.Respond(envelope)
	if accepted {
		c.closer = closer
	}
	s.mu.Unlock()
	if !accepted {
		s.close(closer)
		s.handler.logger.Info("response not accepted", "session", s.Name(), "request", req.ID(), "location", location)
	}
}

func (s *Session) fetch(ctx context.Context, location string) (*response.Envelope, io.Closer) {
	h := s.handler
	if location == "" || strings.Contains(location, "..") {
		return response.NewError(CodeBadRequest, fmt.Sprintf("invalid location %q", location)), nil
	}
	URL := url.Join(h.baseURL, location)
	object, err := h.fs.Object(ctx, URL, h.options...)
	if err != nil {
		return response.NewError(CodeNotFound, fmt.Sprintf("%v not found", location)), nil
	}
	if object.IsDir() {
		return response.NewError(CodeBadRequest, fmt.Sprintf("%v is a directory", location)), nil
	}
	size := object.Size()
	if size <= h.threshold {
		data, err := h.fs.DownloadWithURL(ctx, URL, h.options...)
		if err != nil {
			h.logger.Error(err, "download failed", "url", URL)
			return response.NewError(CodeInternal, err.Error()), nil
		}
		return response.NewData(data), nil
	}
	if url.Scheme(URL, file.Scheme) == file.Scheme {
		f, err := os.Open(url.Path(URL))
		if err != nil {
			return response.NewError(CodeInternal, err.Error()), nil
		}
		return response.NewFile(f, size), f
	}
	reader, err := h.fs.OpenURL(ctx, URL, h.options...)
	if err != nil {
		return response.NewError(CodeInternal, err.Error()), nil
	}
	return response.NewStream(response.NewReaderStream(reader, h.buffers)), reader
}

// RequestFinished implements session.Session.
func (s *Session) RequestFinished(req session.Request, _ bool) {
	s.mu.Lock()
	c, ok := s.calls[req]
	delete(s.calls, req)
	var closer io.Closer
	if ok {
		c.finished = true
		closer, c.closer = c.closer, nil
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.close(closer)
	s.Detach()
}

func (s *Session) close(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		s.handler.logger.Error(err, "failed to close response source", "session", s.Name())
	}
}

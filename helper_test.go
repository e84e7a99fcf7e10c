package ssi_test

import (
	"context"

	"github.com/viant/ssi/provision/memory"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/session"
)

// stalledSession binds requests but never answers them.
type stalledSession struct {
	*session.Base
}

func (s *stalledSession) ProcessRequest(req session.Request) { req.Bind() }

func (s *stalledSession) RequestFinished(session.Request, bool) {}

func stalledHandler() memory.HandlerFunc {
	return func(_ context.Context, _ *resource.Resource, base *session.Base) (session.Session, error) {
		return &stalledSession{Base: base}, nil
	}
}

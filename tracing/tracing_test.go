package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_File(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.txt")
	require.NoError(t, Init(Config{ServiceName: "ssi", Version: "0.0.1", OutputFile: fname}))

	ctx, acquire := StartAcquire(context.Background(), "/echo")
	provisionCtx, provision := StartProvision(ctx, "/echo", "node-1")
	provision.Event("throttled", "wait", 3)
	provision.End(errors.New("retry-later"))
	_, dispatch := StartDispatch(provisionCtx, "request 1")
	dispatch.Set(AttrRequest, uint32(1))
	dispatch.End(nil)
	acquire.End(nil)

	current, ok := Current(ctx)
	assert.True(t, ok)
	assert.NotNil(t, current)

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), "provision.acquire")
}

func TestSpan_Nil(t *testing.T) {
	var span *Span
	span.Set(AttrSession, "echo")
	span.Event("noop")
	span.End(nil)
	_, ok := Current(context.Background())
	assert.False(t, ok)
}

package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
)

type baseHolder struct{ ctx context.Context }

// baseCtx is cancelled when the process begins shutting down.
var baseCtx atomic.Pointer[baseHolder]

// SetBaseContext sets the process context that bounds long-running handlers.
// A nil ctx resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseCtx.Store(&baseHolder{ctx: ctx})
}

func baseContext() context.Context {
	if h := baseCtx.Load(); h != nil {
		return h.ctx
	}
	return context.Background()
}

// requestContext derives a context from r that is also cancelled when the
// base context is done. The cancel func must be called when the handler ends.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(baseContext(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

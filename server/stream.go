package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/server/middleware"
	"github.com/kbukum/streamkit/wire"
)

// ContextKeyResult is the gin context key holding the delivery.Result of a
// streaming route once it has finished.
const ContextKeyResult = "delivery_result"

// StreamHandler builds the response of a streaming route. Returning an error
// or panicking is handled like a body failure before the first byte.
type StreamHandler func(c *gin.Context) (*delivery.Response, error)

// Stream registers a streaming route. Extra gin handlers run before the
// stream, after the stream limit.
func (s *Server) Stream(method, path string, h StreamHandler, handlers ...gin.HandlerFunc) {
	chain := make([]gin.HandlerFunc, 0, len(handlers)+2)
	chain = append(chain, middleware.StreamLimit(s.streams))
	chain = append(chain, handlers...)
	chain = append(chain, s.serveStream(h))
	s.engine.Handle(method, path, chain...)
}

// StreamGET registers a streaming GET route.
func (s *Server) StreamGET(path string, h StreamHandler, handlers ...gin.HandlerFunc) {
	s.Stream(http.MethodGet, path, h, handlers...)
}

func (s *Server) serveStream(h StreamHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn := wire.NewHTTPConn(c.Writer)
		res := s.controller.Serve(c.Request.Context(), conn, func(ctx context.Context) (*delivery.Response, error) {
			c.Request = c.Request.WithContext(ctx)
			return h(c)
		})
		c.Set(ContextKeyResult, res)

		// Without a hijackable connection the only way to stop net/http from
		// finishing the response cleanly is the abort panic.
		if res.State == delivery.Aborted && !conn.Hijacked() {
			panic(http.ErrAbortHandler)
		}
	}
}

// Package middleware holds the net/http middleware the server installs
// around its root handler, plus the Gin-level stream limiter.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain returns a Middleware applying mws so that mws[0] sees the request
// first and the response last.
func Chain(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for _, mw := range slices.Backward(mws) {
			h = mw(h)
		}
		return h
	}
}

// GinWrap runs mw for one Gin route, continuing the Gin chain with whatever
// request mw hands on.
func GinWrap(mw Middleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
	}
}

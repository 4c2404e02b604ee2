// Package middleware holds the HTTP middleware wrapped around the plantlog
// router.
package middleware

import (
	"net/http"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered middleware stack. The first middleware added is the
// outermost: requests pass through the chain in the order it was built.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from mws, outermost first.
func NewChain(mws ...Middleware) *Chain {
	c := &Chain{middlewares: make([]Middleware, 0, len(mws))}
	for _, mw := range mws {
		c.Use(mw)
	}
	return c
}

// Use appends mw as the innermost middleware so far. Nil is ignored.
func (c *Chain) Use(mw Middleware) {
	if mw == nil {
		return
	}
	c.middlewares = append(c.middlewares, mw)
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Then wraps handler with every middleware in the chain.
func (c *Chain) Then(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware: Then called with nil handler")
	}
	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
	}
	return wrapped
}

// Package tool defines the port for invoking external named tools.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/tubedigest/internal/domain"
)

// Kind classifies a tool failure.
type Kind string

const (
	KindFailure     Kind = "failure"
	KindAuth        Kind = "auth"
	KindUnavailable Kind = "unavailable"
)

// Call names a tool and its JSON-compatible arguments.
type Call struct {
	Tool string
	Args map[string]any
}

// Result is what a tool returned. Texts holds each text content block in
// order; Structured is the tool's structured content, if any.
type Result struct {
	Texts      []string
	Structured any
}

// Text joins every text block with newlines.
func (r *Result) Text() string {
	return strings.Join(r.Texts, "\n")
}

// Error is a failed tool invocation.
type Error struct {
	Tool    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s: %s", e.Tool, e.Kind, e.Message)
}

// Is maps the failure kind onto the domain taxonomy. An unreachable tool
// endpoint is a tool failure; upstream codes are reserved for agent hops.
func (e *Error) Is(target error) bool {
	switch target {
	case domain.ErrToolFailure:
		return e.Kind == KindFailure || e.Kind == KindUnavailable
	case domain.ErrAuthFailure:
		return e.Kind == KindAuth
	}
	return false
}

// Failure builds a KindFailure error.
func Failure(name, format string, args ...any) *Error {
	return &Error{Tool: name, Kind: KindFailure, Message: fmt.Sprintf(format, args...)}
}

// Invoker invokes named tools on external endpoints.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, call Call) (*Result, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, call Call) (*Result, error) {
	return f(ctx, call)
}

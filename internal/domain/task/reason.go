package task

import (
	"context"
	"errors"

	"github.com/Strob0t/tubedigest/internal/domain"
)

// Code identifies why a task or item failed.
type Code string

const (
	CodeClientError         Code = "client_error"
	CodeIntentUnresolved    Code = "intent_unresolved"
	CodeUpstreamTimeout     Code = "upstream_timeout"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeToolFailure         Code = "tool_failure"
	CodeCombineFailed       Code = "combine_failed"
	CodeAuthFailure         Code = "auth_failure"
	CodeAllItemsFailed      Code = "all_items_failed"
	CodeInternal            Code = "internal"
)

// Class groups codes into the error taxonomy callers act on.
type Class string

const (
	ClassClientError     Class = "ClientError"
	ClassUpstreamTimeout Class = "UpstreamTimeout"
	ClassToolFailure     Class = "ToolFailure"
	ClassAuthFailure     Class = "AuthFailure"
	ClassAllItemsFailed  Class = "AllItemsFailed"
	ClassInternal        Class = "Internal"
)

var codeClasses = map[Code]Class{
	CodeClientError:         ClassClientError,
	CodeIntentUnresolved:    ClassClientError,
	CodeUpstreamTimeout:     ClassUpstreamTimeout,
	CodeUpstreamUnavailable: ClassUpstreamTimeout,
	CodeToolFailure:         ClassToolFailure,
	CodeCombineFailed:       ClassToolFailure,
	CodeAuthFailure:         ClassAuthFailure,
	CodeAllItemsFailed:      ClassAllItemsFailed,
	CodeInternal:            ClassInternal,
}

// Class returns the taxonomy class of the code.
func (c Code) Class() Class {
	if cl, ok := codeClasses[c]; ok {
		return cl
	}
	return ClassInternal
}

// Hop names used in Reason.Hop.
const (
	HopFinder       = "finder"
	HopOrchestrator = "orchestrator"
)

// ToolHop returns the hop name for a tool endpoint call.
func ToolHop(tool string) string { return "tool:" + tool }

// Reason describes a failure. It crosses agent boundaries unchanged.
type Reason struct {
	Code    Code   `json:"code"`
	Message string `json:"message,omitempty"`
	Hop     string `json:"hop,omitempty"`
}

// Class is shorthand for r.Code.Class().
func (r Reason) Class() Class { return r.Code.Class() }

func (r Reason) Error() string {
	if r.Hop == "" {
		return string(r.Code) + ": " + r.Message
	}
	return r.Hop + ": " + string(r.Code) + ": " + r.Message
}

// ReasonFromError maps an error to a Reason using the domain sentinels.
// Context deadline errors count as upstream timeouts.
func ReasonFromError(err error, hop string) Reason {
	var r Reason
	if errors.As(err, &r) {
		if r.Hop == "" {
			r.Hop = hop
		}
		return r
	}
	code := CodeInternal
	switch {
	case errors.Is(err, domain.ErrIntentUnresolved):
		code = CodeIntentUnresolved
	case errors.Is(err, domain.ErrValidation):
		code = CodeClientError
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		code = CodeUpstreamTimeout
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		code = CodeUpstreamUnavailable
	case errors.Is(err, domain.ErrAuthFailure):
		code = CodeAuthFailure
	case errors.Is(err, domain.ErrCombineFailed):
		code = CodeCombineFailed
	case errors.Is(err, domain.ErrToolFailure):
		code = CodeToolFailure
	case errors.Is(err, domain.ErrAllItemsFailed):
		code = CodeAllItemsFailed
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Reason{Code: code, Message: msg, Hop: hop}
}

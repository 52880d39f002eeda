// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrValidation indicates malformed or ambiguous caller input.
var ErrValidation = errors.New("validation error")

// ErrIntentUnresolved indicates free-text input could not be mapped to a
// channel+date or playlist intent.
var ErrIntentUnresolved = errors.New("intent unresolved")

// ErrUpstreamTimeout indicates a delegated agent did not reply before the deadline.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// ErrUpstreamUnavailable indicates a delegated agent could not be reached at all.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrToolFailure indicates a tool endpoint call failed or returned an unusable result.
var ErrToolFailure = errors.New("tool failure")

// ErrCombineFailed indicates the combine tool call failed.
var ErrCombineFailed = errors.New("combine failed")

// ErrAuthFailure indicates a call was rejected because of its credentials.
var ErrAuthFailure = errors.New("auth failure")

// ErrAllItemsFailed indicates every item of a fan-out failed.
var ErrAllItemsFailed = errors.New("all items failed")

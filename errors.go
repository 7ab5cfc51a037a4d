// Package memarena is the root package of the zoned arena allocator:
// it ties together the addr, bitmap, tract, chunk, mfs, land, policy,
// control and class packages into the arena core (package arena), and
// carries the ambient concerns -- sentinel errors, structured logging,
// and metrics -- common to every operation (SPEC_FULL.md §3).
package memarena

import "github.com/pkg/errors"

// Res is the arena's result-kind sentinel, the Go rendering of the
// source's Res enum (OK, FAIL, RESOURCE, MEMORY, COMMIT_LIMIT, LIMIT,
// UNIMPL). Only a failing Res ever exists as a value; success is a nil
// error, following Go convention rather than returning an explicit OK.
type Res struct {
	name string
}

func (r Res) Error() string { return r.name }

var (
	// ErrFail is a generic, otherwise-uncategorized failure.
	ErrFail = Res{"memarena: FAIL"}
	// ErrResource means no suitable address range exists, even after
	// Plans A-E.
	ErrResource = Res{"memarena: RESOURCE"}
	// ErrMemory means the backend is out of commitable memory.
	ErrMemory = Res{"memarena: MEMORY"}
	// ErrCommitLimit means the request would exceed the arena's commit
	// limit.
	ErrCommitLimit = Res{"memarena: COMMIT_LIMIT"}
	// ErrUnimplemented means the backend does not support the requested
	// operation.
	ErrUnimplemented = Res{"memarena: UNIMPL"}
)

// wrap annotates cause with a message and a stack trace via
// github.com/pkg/errors, preserving cause as the recoverable sentinel
// (errors.Cause(wrap(ErrResource, "...")) == ErrResource).
func wrap(cause error, message string) error {
	return errors.WithMessage(errors.WithStack(cause), message)
}

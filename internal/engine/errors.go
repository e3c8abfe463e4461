package engine

import (
	"errors"

	"github.com/codexfi/memory/internal/vectorstore"
)

// ErrorKind classifies an engine-level failure per the taxonomy in the
// error handling design (spec §7), one level above the store's own Kind.
type ErrorKind string

const (
	KindArg      ErrorKind = "E_ARG"
	KindDim      ErrorKind = "E_DIM"
	KindIO       ErrorKind = "E_IO"
	KindUpstream ErrorKind = "E_UPSTREAM"
	KindTimeout  ErrorKind = "E_TIMEOUT"
	KindNotFound ErrorKind = "E_NOT_FOUND"
)

// EngineError is the typed error every exported Engine method returns on
// failure. Callers branch with errors.Is/errors.As against Kind while still
// seeing the wrapped cause.
type EngineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Op
	}
	return string(e.Kind) + ": " + e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool {
	var other *EngineError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newEngineErr(kind ErrorKind, op string, err error) *EngineError {
	return &EngineError{Kind: kind, Op: op, Err: err}
}

// wrapStoreErr translates a vectorstore.Error's Kind into the matching
// engine ErrorKind, preserving the wrapped cause.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *vectorstore.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case vectorstore.KindArg:
			return newEngineErr(KindArg, op, err)
		case vectorstore.KindDim:
			return newEngineErr(KindDim, op, err)
		case vectorstore.KindNotFound:
			return newEngineErr(KindNotFound, op, err)
		case vectorstore.KindTimeout:
			return newEngineErr(KindTimeout, op, err)
		default:
			return newEngineErr(KindIO, op, err)
		}
	}
	return newEngineErr(KindIO, op, err)
}

// isStoreIOErr reports whether err is a vectorstore E_IO failure, the one
// kind the engine retries once after a refresh (spec §7).
func isStoreIOErr(err error) bool {
	var se *vectorstore.Error
	return errors.As(err, &se) && se.Kind == vectorstore.KindIO
}

package annotate

import (
	"context"
	"errors"

	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/segment"
	"github.com/dgallion1/syntaxd/internal/textcheck"
)

// Kind classifies an annotation failure.
type Kind string

const (
	KindInputRejected Kind = "input_rejected"
	KindNoParse       Kind = "no_parse"
	KindInternal      Kind = "internal"
)

// Reasons reported to callers.
const (
	ReasonTooLong       = "input too long."
	ReasonZeroLength    = "input had zero length."
	ReasonParseFailed   = "parse failed."
	ReasonNoProbability = "mapProbs did not return answer"
	ReasonEncoding      = "input is not encoding-compatible."
	ReasonNoSentences   = "record has no sentences."
	ReasonBadSpan       = "boundary span out of range."
	ReasonCanceled      = "annotation canceled."
)

// Error is the single failure type returned by the Annotator.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + " " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func rejected(reason string, err error) *Error {
	return &Error{Kind: KindInputRejected, Reason: reason, Err: err}
}

// classify maps collaborator errors onto annotation errors.
func classify(err error) *Error {
	var ae *Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, textcheck.ErrIncompatible):
		return rejected(ReasonEncoding, err)
	case errors.Is(err, segment.ErrNoSentences):
		return rejected(ReasonNoSentences, err)
	case errors.Is(err, segment.ErrSpanOutOfRange):
		return rejected(ReasonBadSpan, err)
	case errors.Is(err, engine.ErrEmptyInput):
		return rejected(ReasonZeroLength, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindInternal, Reason: ReasonCanceled, Err: err}
	default:
		return &Error{Kind: KindNoParse, Reason: ReasonParseFailed, Err: err}
	}
}

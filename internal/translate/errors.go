package translate

import (
	"errors"
	"fmt"

	"warp/internal/ir"
	"warp/internal/isa"
)

// ErrorKind classifies translation failures. Both kinds are recovered
// locally: the engine pins the block to the interpreter and never retries.
type ErrorKind uint8

const (
	// KindUnsupportedOperation means the target has no encoding for an op.
	KindUnsupportedOperation ErrorKind = iota
	// KindRegisterPressure means live ranges cannot fit the target's
	// register file and spill area with the allocation strategy in use.
	KindRegisterPressure
)

// Error is a translation failure.
type Error struct {
	Kind ErrorKind
	Pair isa.Pair
	Op   ir.OpKind // set for KindUnsupportedOperation
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupportedOperation:
		return fmt.Sprintf("translate %s: no encoding for %s", e.Pair, e.Op)
	case KindRegisterPressure:
		return fmt.Sprintf("translate %s: register pressure exceeded", e.Pair)
	default:
		return fmt.Sprintf("translate %s: unknown error", e.Pair)
	}
}

// IsUnsupported reports whether err is an unsupported-operation failure.
func IsUnsupported(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindUnsupportedOperation
}

// IsRegisterPressure reports whether err is a register-pressure failure.
func IsRegisterPressure(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindRegisterPressure
}

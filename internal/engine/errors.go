package engine

import "errors"

// Errors reported by Extract. They are wrapped with details and can be
// matched with errors.Is.
var (
	ErrUnbalancedFlow      = errors.New("unbalanced flow")
	ErrDemandNotMet        = errors.New("demand not met")
	ErrPatternOverCapacity = errors.New("pattern exceeds bin capacity")
	ErrBinaryViolation     = errors.New("item used more than once in a binary pattern")
	ErrQuantityExceeded    = errors.New("bin type quantity exceeded")
	ErrInvalidFlow         = errors.New("invalid flow value")
)

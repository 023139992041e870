package schedgraph

import "github.com/pkg/errors"

// Sentinel errors identifying the schema/state error taxonomy.
// Call sites wrap these with errors.Wrapf to attach the offending
// pass and resource names.
var (
	ErrDuplicatePass        = errors.New("schedgraph: duplicate pass name")
	ErrDuplicateWriter      = errors.New("schedgraph: subresource already has a writer this frame")
	ErrCircularDependency   = errors.New("schedgraph: circular dependency between passes")
	ErrMissingFormat        = errors.New("schedgraph: typeless resource used without a concrete format")
	ErrResourceAlreadyUsed  = errors.New("schedgraph: resource scheduled more than once in the same pass")
	ErrUnsupportedOnQueue   = errors.New("schedgraph: no competent queue available for required transition")
	ErrUnscheduledSubresrc  = errors.New("schedgraph: read of a subresource that was never scheduled")
	ErrSubresourceOutOfRange = errors.New("schedgraph: subresource index out of range")
)

var debugAsserts = false

// SetDebugAsserts sets the package's debug-assertion flag, which
// is off by default. No code in this package reads the flag, so
// it does not change any check: reads of never-scheduled
// resources are always reported as ErrUnscheduledSubresrc, and
// subresource indices are never range-checked.
func SetDebugAsserts(on bool) { debugAsserts = on }

package executor

import (
	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/docker/docker/errdefs"
)

// translateEngineErr classifies a raw Docker SDK error into the corerr
// taxonomy so callers never need to inspect engine-specific error types.
func translateEngineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errdefs.IsNotFound(err):
		return corerr.Wrap(corerr.KindNotFound, op, err)
	case errdefs.IsConflict(err):
		return corerr.Wrap(corerr.KindConflict, op, err)
	case errdefs.IsInvalidParameter(err):
		return corerr.Wrap(corerr.KindValidation, op, err)
	case errdefs.IsForbidden(err):
		return corerr.Wrap(corerr.KindForbidden, op, err)
	default:
		return corerr.Engine(op, err)
	}
}

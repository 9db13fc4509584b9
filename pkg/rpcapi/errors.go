// Package rpcapi is the wire-facing contract between the connection and
// streaming plane and an external caller (CLI, dashboard, automation).
// It does not hand-roll a grpc.Server or a protobuf ServiceDesc — without
// protoc there is no way to verify a hand-written service description
// actually satisfies the grpc wire format. Instead it provides the three
// things a real generated service would need wired underneath it: a
// Kind-to-status error mapper, wire-shaped stream frames built on
// timestamppb, and the plain Go contract interfaces a server
// implementation binds to pkg/executor.
package rpcapi

import (
	"github.com/cuemby/fleetctl/pkg/corerr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus translates a pkg/corerr error into a gRPC status, following the
// same read/write and not-found/forbidden classification
// cuemby-warren's interceptor used for HTTP method names, applied instead
// to corerr's Kind taxonomy.
func ToStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s
	}

	var code codes.Code
	switch corerr.KindOf(err) {
	case corerr.KindNotFound:
		code = codes.NotFound
	case corerr.KindConflict:
		code = codes.AlreadyExists
	case corerr.KindValidation:
		code = codes.InvalidArgument
	case corerr.KindForbidden:
		code = codes.PermissionDenied
	case corerr.KindCancelled:
		code = codes.Canceled
	case corerr.KindBreakerOpen:
		code = codes.Unavailable
	case corerr.KindTransport:
		code = codes.Unavailable
	case corerr.KindStream:
		code = codes.Aborted
	case corerr.KindEngine:
		code = codes.Internal
	default:
		code = codes.Internal
	}
	return status.New(code, err.Error())
}

// ToError is a convenience wrapper returning the status as an error, the
// shape a gRPC handler actually returns.
func ToError(err error) error {
	if err == nil {
		return nil
	}
	return ToStatus(err).Err()
}

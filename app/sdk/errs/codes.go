package errs

import "net/http"

// The set of error codes the service responds with.
var (
	InvalidArgument    = ErrCode{value: 1}
	Conflict           = ErrCode{value: 2}
	Unauthenticated    = ErrCode{value: 3}
	PermissionDenied   = ErrCode{value: 4}
	NotFound           = ErrCode{value: 5}
	FailedPrecondition = ErrCode{value: 6}
	Unavailable        = ErrCode{value: 7}
	Internal           = ErrCode{value: 8}
	InternalOnlyLog    = ErrCode{value: 9}
)

var codeNames = map[ErrCode]string{
	InvalidArgument:    "invalid_argument",
	Conflict:           "conflict",
	Unauthenticated:    "unauthenticated",
	PermissionDenied:   "permission_denied",
	NotFound:           "not_found",
	FailedPrecondition: "failed_precondition",
	Unavailable:        "unavailable",
	Internal:           "internal",
	InternalOnlyLog:    "internal_only_log",
}

// A duplicate unique key is reported as a bad request, not 409, so clients
// that only branch on 400/401 keep working.
var httpStatus = map[ErrCode]int{
	InvalidArgument:    http.StatusBadRequest,
	Conflict:           http.StatusBadRequest,
	Unauthenticated:    http.StatusUnauthorized,
	PermissionDenied:   http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	FailedPrecondition: http.StatusBadRequest,
	Unavailable:        http.StatusServiceUnavailable,
	Internal:           http.StatusInternalServerError,
	InternalOnlyLog:    http.StatusInternalServerError,
}

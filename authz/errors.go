package authz

import "errors"

// ErrPermissionDenied is the single externally observable denial kind. Every
// rejection the gate produces matches it under errors.Is.
var ErrPermissionDenied = errors.New("permission denied")

// Internal denial reasons. These never cross the gate boundary in error text;
// they exist for diagnostics, logs, and metrics.
var (
	ErrTokenRequired             = errors.New("authz: token required")
	ErrTokenMalformed            = errors.New("authz: token malformed")
	ErrUnknownSigningKey         = errors.New("authz: unknown signing key")
	ErrBadSignature              = errors.New("authz: bad signature")
	ErrClaimMissingField         = errors.New("authz: claim missing required field")
	ErrClaimOutOfTimeWindow      = errors.New("authz: claim outside validity window")
	ErrEmptyTenantClaim          = errors.New("authz: empty tenant claim")
	ErrTenantMismatch            = errors.New("authz: tenant not authorized by token")
	ErrPrivilegedKeyspaceAccess  = errors.New("authz: privileged keyspace access")
	ErrTenantManagementForbidden = errors.New("authz: tenant management forbidden")
)

// PermissionError is a denial carrying its internal reason. Its message is
// deliberately uniform: the caller learns only that permission was denied,
// while Reason and Detail stay available to internal diagnostics through
// Unwrap and Diagnostic.
type PermissionError struct {
	// Reason is one of the sentinel denial reasons above.
	Reason error

	// Detail is optional extra diagnostic context (range label, kid, ...).
	Detail string
}

// Error returns the uniform external message.
func (e *PermissionError) Error() string {
	return "permission denied"
}

// Unwrap exposes the internal reason for errors.Is/As in diagnostics paths.
func (e *PermissionError) Unwrap() error {
	return e.Reason
}

// Is reports a match against ErrPermissionDenied.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// Diagnostic returns the full internal description, for logs only.
func (e *PermissionError) Diagnostic() string {
	if e.Reason == nil {
		return "permission denied"
	}
	if e.Detail != "" {
		return e.Reason.Error() + ": " + e.Detail
	}
	return e.Reason.Error()
}

// Denied wraps a reason into a uniform denial.
func Denied(reason error) *PermissionError {
	return &PermissionError{Reason: reason}
}

// DeniedDetail wraps a reason with extra diagnostic context.
func DeniedDetail(reason error, detail string) *PermissionError {
	return &PermissionError{Reason: reason, Detail: detail}
}

// reasonLabel maps a denial to its metric label.
func reasonLabel(reason error) string {
	switch {
	case errors.Is(reason, ErrTokenRequired):
		return "token_required"
	case errors.Is(reason, ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(reason, ErrUnknownSigningKey):
		return "unknown_signing_key"
	case errors.Is(reason, ErrBadSignature):
		return "bad_signature"
	case errors.Is(reason, ErrClaimMissingField):
		return "claim_missing_field"
	case errors.Is(reason, ErrClaimOutOfTimeWindow):
		return "claim_out_of_time_window"
	case errors.Is(reason, ErrEmptyTenantClaim):
		return "empty_tenant_claim"
	case errors.Is(reason, ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(reason, ErrPrivilegedKeyspaceAccess):
		return "privileged_keyspace_access"
	case errors.Is(reason, ErrTenantManagementForbidden):
		return "tenant_management_forbidden"
	default:
		return "other"
	}
}

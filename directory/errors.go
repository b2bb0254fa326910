package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of directory errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// OperationError provides categorized error information for a directory
// operation. The category is derived from the LDAP result code when the
// underlying error carries one.
type OperationError struct {
	Op         string        // The operation that failed: add, delete, modify, rename, search, bind
	Category   ErrorCategory // Error category
	ResultCode uint16        // LDAP result code, 0 when unavailable
	DN         string        // DN involved in the operation, if applicable
	Retryable  bool          // Whether the error is retryable
	Err        error         // Underlying error
}

func (e *OperationError) Error() string {
	var parts []string

	if e.ResultCode > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Op, e.ResultCode))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Op))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, " - ")
}

func (e *OperationError) IsRetryable() bool {
	return e.Retryable
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// newOperationError wraps a raw transport error with category information.
func newOperationError(op, dn string, err error) *OperationError {
	if err == nil {
		return nil
	}

	opErr := &OperationError{
		Op:  op,
		DN:  dn,
		Err: err,
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		opErr.ResultCode = ldapErr.ResultCode
		opErr.Category = categorizeCode(ldapErr.ResultCode)
		opErr.Retryable = isCodeRetryable(ldapErr.ResultCode)
	} else {
		opErr.Category = categorizeGenericError(err)
		opErr.Retryable = isGenericErrorRetryable(err)
	}

	return opErr
}

// wrapOperationError wraps err unless it is already an OperationError for
// this operation.
func wrapOperationError(op, dn string, err error) error {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Op == "" {
			opErr.Op = op
		}
		if opErr.DN == "" {
			opErr.DN = dn
		}
		return err
	}

	return newOperationError(op, dn, err)
}

// categorizeCode categorizes an error based on LDAP result code.
func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors by message.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "credentials") ||
		strings.Contains(errStr, "password") {
		return ErrorCategoryAuthentication
	}

	if strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access") ||
		strings.Contains(errStr, "denied") {
		return ErrorCategoryPermission
	}

	return ErrorCategoryUnknown
}

// isCodeRetryable determines if an LDAP result code indicates a retryable
// condition.
func isCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError:
		return true
	default:
		return false
	}
}

// isGenericErrorRetryable determines if a generic error is retryable.
func isGenericErrorRetryable(err error) bool {
	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"connection",
		"timeout",
		"network",
		"broken pipe",
		"connection reset",
		"temporary failure",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Category
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return categorizeCode(ldapErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return isCodeRetryable(ldapErr.ResultCode)
	}

	return isGenericErrorRetryable(err)
}

// IsNotFound checks if an error indicates a missing entry or base.
func IsNotFound(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// IsAlreadyExists checks if an error indicates a DN collision on create.
func IsAlreadyExists(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConflict
}

// IsAuthError checks if an error indicates a failed bind.
func IsAuthError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsConnectError checks if an error indicates an unreachable server.
func IsConnectError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConnection
}

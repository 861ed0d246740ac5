package authz

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthenticationMissing indicates no principal could be established
// for the request.
var ErrAuthenticationMissing = errors.New("authz: authentication required")

// PermissionDeniedError reports an authenticated principal lacking a
// specific right. Requirement names the permission, role or scope that
// was missing; nothing else about the policy is disclosed.
type PermissionDeniedError struct {
	Requirement string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("authz: permission denied: %s required", e.Requirement)
}

// HTTPStatus satisfies httpx.StatusError without httpx importing this
// package.
func (e *PermissionDeniedError) HTTPStatus() int { return http.StatusForbidden }

// InvalidPermissionError reports an attempt to assign or validate a
// permission string outside the catalog. It is raised at assignment
// time only; evaluation treats unknown permissions as absent.
type InvalidPermissionError struct {
	Permission Permission
}

func (e *InvalidPermissionError) Error() string {
	return fmt.Sprintf("authz: unknown permission %q", string(e.Permission))
}

func (e *InvalidPermissionError) HTTPStatus() int { return http.StatusBadRequest }

// AccessDeniedError reports a pharmacy tenancy failure, distinct from
// permission denial: the principal may hold the capability but is not
// assigned to the target pharmacy's data.
type AccessDeniedError struct {
	Operation string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("authz: access denied: %s", e.Operation)
}

func (e *AccessDeniedError) HTTPStatus() int { return http.StatusForbidden }

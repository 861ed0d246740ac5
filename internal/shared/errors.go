// Package shared holds cross-module helpers: sentinel errors,
// pagination and the actor context.
package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates a deactivated account attempting to
	// authenticate.
	ErrInactiveAccount = errors.New("account inactive")
	// ErrInsufficientStock indicates a sale or adjustment would drive
	// stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)

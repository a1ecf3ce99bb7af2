package shared

import (
	"fmt"

	"github.com/veresiye/defter/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	// ErrNotStaff indicates a valid user without admin access.
	ErrNotStaff = fmt.Errorf("%w: admin access required", httpx.ErrForbidden)
)

package shared

import "errors"

// ErrInvalidCredentials indicates a rejected API token.
var ErrInvalidCredentials = errors.New("invalid credentials")

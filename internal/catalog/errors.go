package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the product or reference does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicateSKU indicates the SKU is already assigned to another product.
	ErrDuplicateSKU = errors.New("catalog: product with this sku already exists")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("catalog: invalid input")
	// ErrDuplicateCode indicates a concurrent write took the allocated product code.
	ErrDuplicateCode = errors.New("catalog: product code already taken, retry")
	// ErrImmutableSKU indicates an attempt to change an assigned SKU.
	ErrImmutableSKU = errors.New("catalog: sku cannot be changed once assigned")
	// ErrStaleReference indicates a supplied reference ID does not exist (strict mode).
	ErrStaleReference = errors.New("catalog: referenced entity does not exist")
	// ErrReferenceConflict indicates a reference insert lost a race twice.
	ErrReferenceConflict = errors.New("catalog: reference insert conflicted")
	// ErrUnknownDimension indicates an unsupported dimension name.
	ErrUnknownDimension = errors.New("catalog: unknown dimension")
)

// TransactionError reports a failure of the store transaction backing an operation.
// Nothing written inside the transaction persists.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("catalog: %s: transaction aborted: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// domainError reports whether err already carries a catalog sentinel and should reach the
// caller unwrapped.
func domainError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrDuplicateSKU, ErrDuplicateCode, ErrValidation, ErrImmutableSKU, ErrStaleReference, ErrUnknownDimension} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

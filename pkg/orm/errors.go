package orm

import (
	"fmt"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

// ContractError is the panic value raised when a caller breaks the calling
// contract of a relation or the store: assigning an entity of the wrong type,
// appending a member twice, indexing past the end of a list, loading a list
// whose owner has no key, or using an entity that was never initialized.
type ContractError struct {
	msg string
}

func (e *ContractError) Error() string {
	return "narwhal: " + e.msg
}

// Unwrap returns types.ErrContract.
func (e *ContractError) Unwrap() error {
	return types.ErrContract
}

func contractf(format string, args ...any) *ContractError {
	return &ContractError{msg: fmt.Sprintf(format, args...)}
}

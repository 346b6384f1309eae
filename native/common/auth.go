package common

import (
	"encoding/hex"
	"fmt"
)

// UnauthorizedError reports a caller that does not own the entity it tried to
// mutate.
type UnauthorizedError struct {
	Owner  [20]byte
	Caller [20]byte
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: entity owned by %s, called by %s",
		hex.EncodeToString(e.Owner[:]), hex.EncodeToString(e.Caller[:]))
}

// RequireOwner is the shared capability check applied before every owner-only
// mutation.
func RequireOwner(owner, caller [20]byte) error {
	if owner != caller {
		return &UnauthorizedError{Owner: owner, Caller: caller}
	}
	return nil
}

package domain

import "github.com/google/uuid"

// AccountUuid is an opaque reference to an account aggregate. Aggregates never
// hold each other directly, only identifiers.
type AccountUuid string

// NewAccountUuid generates a fresh account reference.
func NewAccountUuid() AccountUuid {
	return AccountUuid(uuid.NewString())
}

// ParseAccountUuid validates a caller-supplied reference.
func ParseAccountUuid(value string) (AccountUuid, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", WrapError(ErrCodeInvalid, "account reference is not a valid uuid", err)
	}
	return AccountUuid(parsed.String()), nil
}

func (a AccountUuid) String() string {
	return string(a)
}

package tenant

import "errors"

var (
	ErrMemberNotFound        = errors.New("member not found")
	ErrInvalidRole           = errors.New("invalid role")
	ErrCannotDemoteLastOwner = errors.New("cannot demote last owner")
	ErrCannotRemoveLastOwner = errors.New("cannot remove last owner")
)

package groups

import "errors"

var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrInviteNotFound     = errors.New("group invite not found")
	ErrNotInGroup         = errors.New("user is not in a group")
	ErrForbidden          = errors.New("actor is not the invited user")
	ErrCapacityExceeded   = errors.New("group capacity exceeded")
	ErrDuplicateInvite    = errors.New("pending invite already exists")
	ErrInviteResolved     = errors.New("invite already resolved")
	ErrAlreadyMerged      = errors.New("users already share a group")
	ErrMembershipConflict = errors.New("user is already active in another group")
	ErrInvalidInvite      = errors.New("invalid invite")
	ErrInvalidName        = errors.New("invalid group name")
)

package grant

import "errors"

var (
	ErrGrantNotFound       = errors.New("access grant not found")
	ErrNotGrantOwner       = errors.New("only the patient who issued the grant may revoke it")
	ErrInvalidResourceType = errors.New("invalid resource type")
)

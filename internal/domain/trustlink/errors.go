package trustlink

import "errors"

var (
	ErrLinkNotFound        = errors.New("trust link not found")
	ErrNotOwner            = errors.New("only the physician named in the request may accept it")
	ErrNotParty            = errors.New("only the patient or physician named in the link may revoke it")
	ErrDuplicateActiveLink = errors.New("a pending or accepted link already exists for this pair")
	ErrAlreadyAccepted     = errors.New("trust link has already been accepted")
	ErrAlreadyRevoked      = errors.New("trust link has been revoked")
	ErrUnknownPhysician    = errors.New("physician does not exist")
	ErrUnverifiedPhysician = errors.New("physician has not been verified yet")
)

package message

import "errors"

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotRecipient    = errors.New("only the recipient may mark a message as read")
	ErrNotConnected    = errors.New("no accepted trust link between sender and recipient")
	ErrInvalidPairing  = errors.New("messages are exchanged between exactly one patient and one physician")
)

package protocol

import "errors"

var (
	ErrEnvelope        = errors.New("protocol: frame must start with '@' and end with '$'")
	ErrLengthMismatch  = errors.New("protocol: length byte does not match frame size")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds 255 bytes")
	ErrUnknownOpcode   = errors.New("protocol: unknown opcode")
	ErrUnexpectedTag   = errors.New("protocol: unexpected frame tag")
	ErrShortPayload    = errors.New("protocol: payload too short for opcode")
)

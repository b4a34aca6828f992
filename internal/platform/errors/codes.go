// Package errors provides the domain error taxonomy shared by the match engine
// and its adapters.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeNotYourTurn     Code = "NOT_YOUR_TURN"
	CodeInvalidAction   Code = "INVALID_ACTION"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Matchmaking errors
	CodeAlreadyInGame  Code = "ALREADY_IN_GAME"
	CodeAlreadyQueued  Code = "ALREADY_QUEUED"
	CodeInvalidRequest Code = "INVALID_REQUEST"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidAction, CodeInvalidRequest:
		return 400
	case CodeNotYourTurn, CodeAlreadyInGame, CodeAlreadyQueued:
		return 409
	case CodeSessionNotFound:
		return 404
	default:
		return 500
	}
}

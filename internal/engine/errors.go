package engine

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const (
	KindNotFound      = "NOT_FOUND"
	KindUnauthorized  = "UNAUTHORIZED"
	KindConfiguration = "CONFIGURATION_ERROR"
	KindExecution     = "EXECUTION_ERROR"
)

const (
	MsgNotFound           = "Not Found"
	MsgUnauthorized       = "Invalid or missing API key"
	MsgInvalidTable       = "Invalid or missing table configuration."
	MsgInvalidModel       = "Invalid or missing model configuration."
	MsgExecutionFailed    = "An error occurred while fetching data."
	MsgInternalServerFail = "Internal server error"
)

// AppError is an error that maps to a client response. Only Message is
// ever sent to the client.
type AppError struct {
	Kind    string
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewAppError(kind string, status int, msg string) *AppError {
	return &AppError{Kind: kind, Status: status, Message: msg}
}

func NotFoundError() *AppError {
	return NewAppError(KindNotFound, fiber.StatusNotFound, MsgNotFound)
}

func UnauthorizedError() *AppError {
	return NewAppError(KindUnauthorized, fiber.StatusUnauthorized, MsgUnauthorized)
}

// ConfigurationError reports a structurally invalid endpoint. msg is one of
// MsgInvalidTable or MsgInvalidModel.
func ConfigurationError(msg string) *AppError {
	return NewAppError(KindConfiguration, fiber.StatusInternalServerError, msg)
}

func ExecutionError() *AppError {
	return NewAppError(KindExecution, fiber.StatusInternalServerError, MsgExecutionFailed)
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr.Message})
}

// ErrorHandler is the fiber error handler. AppErrors keep their status and
// message; fiber errors keep their status; anything else becomes a 500
// without detail.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code == fiber.StatusNotFound {
			return respondError(c, NotFoundError())
		}
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: MsgInternalServerFail})
}

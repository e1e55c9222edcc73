// Package channel carries AuthRequests from the popup to the background process
// and delivers each AuthResponse to a single reply callback.
//
// Two transports are provided: Local dispatches in-process to a Handler, the
// websocket Client/Server pair connects a popup to a separate background
// process.
package channel

import (
	"context"
	"errors"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
)

var (
	ErrClosed        = errors.New("channel closed")
	ErrInvalidAction = errors.New("invalid action")
)

// Handler answers a request on the background side. It must always return a
// response; failures are reported in AuthResponse.Error.
type Handler interface {
	Handle(ctx context.Context, req models.AuthRequest) models.AuthResponse
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req models.AuthRequest) models.AuthResponse

func (f HandlerFunc) Handle(ctx context.Context, req models.AuthRequest) models.AuthResponse {
	return f(ctx, req)
}

// envelope is the wire frame. Requests and responses are matched by ID.
type envelope struct {
	ID       string               `json:"id"`
	Request  *models.AuthRequest  `json:"request,omitempty"`
	Response *models.AuthResponse `json:"response,omitempty"`
}

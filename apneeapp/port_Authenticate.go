package apneeapp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/apnee/ports"
)

type AuthenticateHandler struct {
	app    *App
	sender ports.Sender
	tracer ports.Tracer
}

func NewAuthenticateHandler(app *App) *AuthenticateHandler {
	return &AuthenticateHandler{app: app}
}

func (h *AuthenticateHandler) Start(ctx context.Context, sender ports.Sender, tracer ports.Tracer) error {
	h.sender = sender
	h.tracer = tracer
	return nil
}

func (h *AuthenticateHandler) Declare() ports.Declaration {
	return ports.Declaration{
		Name: PortAuthenticate,
		Description: `Signs the user in to Google Drive: opens the consent page and stores the token.
		Answers on driveOnAuthenticate with null, or on driveOnAuthenticateError with the error text.`,
	}
}

func (h *AuthenticateHandler) Handle(ctx context.Context, payload json.RawMessage) {
	h.tracer.LogInbound(PortAuthenticate, "Sign in to Google Drive.")

	if err := h.app.Auth.Login(ctx); err != nil {
		text := ErrorText(err)
		reply(h.sender, h.tracer, PortOnAuthenticateError, text, fmt.Sprintf("Error: %s", text))
		return
	}
	reply(h.sender, h.tracer, PortOnAuthenticate, nil, "Signed in.")
}

package apneeapp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/apnee/ports"
)

type SaveFileHandler struct {
	app    *App
	sender ports.Sender
	tracer ports.Tracer
}

func NewSaveFileHandler(app *App) *SaveFileHandler {
	return &SaveFileHandler{app: app}
}

func (h *SaveFileHandler) Start(ctx context.Context, sender ports.Sender, tracer ports.Tracer) error {
	h.sender = sender
	h.tracer = tracer
	return nil
}

func (h *SaveFileHandler) Declare() ports.Declaration {
	return ports.Declaration{
		Name: PortSaveFile,
		Description: `Replaces the content of a Drive file. Expects {fileId, content}, where fileId
		is the one received on driveOnFileRead. Answers on driveOnFileSave with null, or on
		driveOnFileSaveError with the error text.`,
	}
}

func (h *SaveFileHandler) Handle(ctx context.Context, payload json.RawMessage) {
	var fc FileContent
	if err := json.Unmarshal(payload, &fc); err != nil {
		h.tracer.LogInbound(PortSaveFile, "Save file: unreadable request.")
		text := fmt.Sprintf("invalid save request: %v", err)
		reply(h.sender, h.tracer, PortOnFileSaveError, text, fmt.Sprintf("Error: %s", text))
		return
	}

	h.tracer.LogInbound(PortSaveFile, fmt.Sprintf("Save %d bytes to file %s.", len(fc.Content), fc.FileID))

	if err := h.app.SaveFile(ctx, fc); err != nil {
		text := ErrorText(err)
		reply(h.sender, h.tracer, PortOnFileSaveError, text, fmt.Sprintf("Error: %s", text))
		return
	}
	reply(h.sender, h.tracer, PortOnFileSave, nil, "Successfully saved file.")
}

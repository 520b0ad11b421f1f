package apneeapp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/apnee/ports"
)

type ReadFileHandler struct {
	app    *App
	sender ports.Sender
	tracer ports.Tracer
}

func NewReadFileHandler(app *App) *ReadFileHandler {
	return &ReadFileHandler{app: app}
}

func (h *ReadFileHandler) Start(ctx context.Context, sender ports.Sender, tracer ports.Tracer) error {
	h.sender = sender
	h.tracer = tracer
	return nil
}

func (h *ReadFileHandler) Declare() ports.Declaration {
	return ports.Declaration{
		Name: PortReadFile,
		Description: `Finds the data file on the user's Drive and downloads it.
		Answers on driveOnFileRead with {fileId, content}, or on driveOnFileReadError with the error text.`,
	}
}

func (h *ReadFileHandler) Handle(ctx context.Context, payload json.RawMessage) {
	h.tracer.LogInbound(PortReadFile, fmt.Sprintf("Read %s from Drive.", h.app.FileName))

	content, err := h.app.ReadFile(ctx)
	if err != nil {
		text := ErrorText(err)
		reply(h.sender, h.tracer, PortOnFileReadError, text, fmt.Sprintf("Error: %s", text))
		return
	}
	reply(h.sender, h.tracer, PortOnFileRead, content,
		fmt.Sprintf("Read %d bytes from file %s.", len(content.Content), content.FileID))
}

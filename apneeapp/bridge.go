package apneeapp

import (
	"github.com/sirupsen/logrus"

	"github.com/etnz/apnee/ports"
)

// Inbound ports, published by the front-end.
const (
	PortReadFile     = "driveReadFile"
	PortAuthenticate = "driveAuthenticate"
	PortSaveFile     = "driveSaveFile"
)

// Outbound ports, answered by the bridge.
const (
	PortOnFileRead          = "driveOnFileRead"
	PortOnFileReadError     = "driveOnFileReadError"
	PortOnAuthenticate      = "driveOnAuthenticate"
	PortOnAuthenticateError = "driveOnAuthenticateError"
	PortOnFileSave          = "driveOnFileSave"
	PortOnFileSaveError     = "driveOnFileSaveError"
)

// NewBridge creates the bus serving every inbound port with app.
func NewBridge(app *App) *ports.Bus {
	return ports.NewBus("drive",
		NewReadFileHandler(app),
		NewAuthenticateHandler(app),
		NewSaveFileHandler(app),
	)
}

// reply traces and sends one outbound message.
func reply(s ports.Sender, t ports.Tracer, port string, payload any, summary string) {
	t.LogOutbound(port, summary)
	if err := s.Send(port, payload); err != nil {
		logrus.WithError(err).WithField("port", port).Error("could not send reply")
	}
}

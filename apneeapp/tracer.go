package apneeapp

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mitchellh/go-wordwrap"
	"github.com/sirupsen/logrus"

	"github.com/etnz/apnee/ports"
)

var (
	_ ports.Tracer = (*ConsoleTracer)(nil)
	_ ports.Tracer = LogTracer{}
)

// ConsoleTracer prints the port traffic for a human watching the terminal.
type ConsoleTracer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleTracer creates a ConsoleTracer writing to w.
func NewConsoleTracer(w io.Writer) *ConsoleTracer {
	return &ConsoleTracer{w: w}
}

// logMultiline prefixes the first line with the port name and a direction
// character, and indents subsequent lines.
func (c *ConsoleTracer) logMultiline(port, dirChar, text string) {
	const wrapWidth = 80

	firstLinePrefix := fmt.Sprintf("%24s%s ", port, dirChar)
	indentPrefix := fmt.Sprintf("%24s  ", "")

	textWidth := wrapWidth - len(firstLinePrefix)
	if textWidth < 20 {
		textWidth = 20
	}

	wrappedLines := strings.Split(wordwrap.WrapString(text, uint(textWidth)), "\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, line := range wrappedLines {
		if i == 0 {
			fmt.Fprintf(c.w, "%s%s\n", firstLinePrefix, line)
		} else {
			fmt.Fprintf(c.w, "%s%s\n", indentPrefix, line)
		}
	}
}

// LogInbound implements the ports.Tracer interface.
func (c *ConsoleTracer) LogInbound(port, text string) {
	c.logMultiline(port, ">", text)
}

// LogOutbound implements the ports.Tracer interface.
func (c *ConsoleTracer) LogOutbound(port, text string) {
	c.logMultiline(port, ":", text)
}

// LogTracer records the port traffic as debug log entries.
type LogTracer struct{}

func (LogTracer) LogInbound(port, text string) {
	logrus.WithFields(logrus.Fields{"port": port, "direction": "inbound"}).Debug(text)
}

func (LogTracer) LogOutbound(port, text string) {
	logrus.WithFields(logrus.Fields{"port": port, "direction": "outbound"}).Debug(text)
}

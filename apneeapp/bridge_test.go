package apneeapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/apnee/ports"
)

type traceLine struct{ dir, port, text string }

type memTracer struct{ lines []traceLine }

func (m *memTracer) LogInbound(port, text string) {
	m.lines = append(m.lines, traceLine{"in", port, text})
}

func (m *memTracer) LogOutbound(port, text string) {
	m.lines = append(m.lines, traceLine{"out", port, text})
}

// startBridge starts a bridge on app and returns a function sending one inbound
// message and returning the single outbound answer.
func startBridge(t *testing.T, app *App) (func(port, payload string) ports.Message, *memTracer) {
	t.Helper()
	bus := NewBridge(app)
	tracer := &memTracer{}
	require.NoError(t, bus.Start(context.Background(), tracer))

	out, cancel := bus.Subscribe(4)
	t.Cleanup(cancel)

	return func(port, payload string) ports.Message {
		require.NoError(t, bus.Dispatch(context.Background(), ports.Message{Port: port, Payload: json.RawMessage(payload)}))
		require.Len(t, out, 1)
		return <-out
	}, tracer
}

func TestBridge_Ports(t *testing.T) {
	app := newTestApp(t, &fakeDrive{})
	bus := NewBridge(app)
	require.NoError(t, bus.Start(context.Background(), nil))

	assert.Equal(t, []string{PortAuthenticate, PortReadFile, PortSaveFile}, bus.Ports())
}

func TestReadFileHandler(t *testing.T) {
	app := newTestApp(t, &fakeDrive{
		files:   []map[string]string{{"id": "f1", "name": "apnee.json"}},
		content: `{"a":1}`,
	})
	send, tracer := startBridge(t, app)

	msg := send(PortReadFile, "null")

	assert.Equal(t, PortOnFileRead, msg.Port)
	assert.JSONEq(t, `{"fileId":"f1","content":"{\"a\":1}"}`, string(msg.Payload))
	require.Len(t, tracer.lines, 2)
	assert.Equal(t, traceLine{"in", PortReadFile, "Read apnee.json from Drive."}, tracer.lines[0])
	assert.Equal(t, "out", tracer.lines[1].dir)
}

func TestReadFileHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeDrive
		want string
	}{
		{
			name: "no file",
			fake: &fakeDrive{},
			want: `"file not found !"`,
		},
		{
			name: "other files only",
			fake: &fakeDrive{files: []map[string]string{{"id": "x", "name": "apnee.json.old"}}},
			want: `"Data file not found on your drive !"`,
		},
		{
			name: "download refused",
			fake: &fakeDrive{
				files:     []map[string]string{{"id": "f1", "name": "apnee.json"}},
				getStatus: http.StatusForbidden,
				getBody:   "The user does not have sufficient permissions.",
			},
			want: `"The user does not have sufficient permissions."`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send, _ := startBridge(t, newTestApp(t, tt.fake))

			msg := send(PortReadFile, "")

			assert.Equal(t, PortOnFileReadError, msg.Port)
			assert.JSONEq(t, tt.want, string(msg.Payload))
		})
	}
}

func TestSaveFileHandler(t *testing.T) {
	fake := &fakeDrive{}
	send, _ := startBridge(t, newTestApp(t, fake))

	msg := send(PortSaveFile, `{"fileId":"f1","content":"{\"b\":2}"}`)

	assert.Equal(t, PortOnFileSave, msg.Port)
	assert.Equal(t, "null", string(msg.Payload))
	assert.Equal(t, "f1", fake.gotFileID)
	assert.Contains(t, fake.uploadBody, `{"b":2}`)
}

func TestSaveFileHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeDrive
		payload string
		want    string
	}{
		{name: "malformed", fake: &fakeDrive{}, payload: `[1,2]`, want: "invalid save request"},
		{name: "no file id", fake: &fakeDrive{}, payload: `{"content":"{}"}`, want: "missing file id"},
		{name: "null", fake: &fakeDrive{}, payload: `null`, want: "missing file id"},
		{name: "drive error", fake: &fakeDrive{saveStatus: http.StatusInternalServerError}, payload: `{"fileId":"f1","content":"{}"}`, want: "failure 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send, _ := startBridge(t, newTestApp(t, tt.fake))

			msg := send(PortSaveFile, tt.payload)

			assert.Equal(t, PortOnFileSaveError, msg.Port)
			var text string
			require.NoError(t, json.Unmarshal(msg.Payload, &text))
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestAuthenticateHandler(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)
	app := newTestApp(t, &fakeDrive{})
	app.Auth = newTestAuthenticator(t, tokenSrv.URL)
	app.Auth.OpenURL = browse(func(state string) url.Values {
		return url.Values{"code": {"c"}, "state": {state}}
	})
	send, _ := startBridge(t, app)

	msg := send(PortAuthenticate, "null")

	assert.Equal(t, PortOnAuthenticate, msg.Port)
	assert.Equal(t, "null", string(msg.Payload))
}

func TestAuthenticateHandler_Error(t *testing.T) {
	app := newTestApp(t, &fakeDrive{})
	app.Auth = newTestAuthenticator(t, "http://unused")
	app.Auth.OpenURL = browse(func(string) url.Values {
		return url.Values{"error": {"access_denied"}}
	})
	send, _ := startBridge(t, app)

	msg := send(PortAuthenticate, "null")

	assert.Equal(t, PortOnAuthenticateError, msg.Port)
	assert.JSONEq(t, `"authentication failed: access_denied"`, string(msg.Payload))
}

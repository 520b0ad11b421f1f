package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// driveStub answers files.list, files.get and the media uploads.
type driveStub struct {
	files      []map[string]string
	content    string
	// gone is a file ID answered with 404 on upload.
	gone       string
	uploaded   string
	uploadPath string
}

func (d *driveStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/files":
		files := d.files
		if files == nil {
			files = []map[string]string{}
		}
		json.NewEncoder(w).Encode(map[string]any{"files": files})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/files/"):
		io.WriteString(w, d.content)
	case d.gone != "" && r.URL.Path == "/upload/drive/v3/files/"+d.gone:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"File not found: `+d.gone+`."}}`)
	case strings.HasPrefix(r.URL.Path, "/upload/drive/v3/files"):
		body, _ := io.ReadAll(r.Body)
		d.uploaded = string(body)
		d.uploadPath = r.URL.Path
		io.WriteString(w, `{"id":"created-id","name":"apnee.json"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
	}
}

// setup points the commands at stub and an isolated configuration, and resets the flags.
func setup(t *testing.T, stub *driveStub) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "config.toml")
	verbose = false
	readJSON = false
	saveFileID = ""
	saveCreate = false
	driveOptions = []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithHTTPClient(srv.Client()),
	}
	t.Cleanup(func() { driveOptions = nil })

	t.Setenv("APNEE_CLIENT_ID", "test-client")
	t.Setenv("APNEE_TOKEN_PATH", filepath.Join(dir, "token.json"))

	stdout, stderr = new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(strings.NewReader(""))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	return stdout, stderr
}

func run(args ...string) error {
	rootCmd.SetArgs(args)
	return Execute(context.Background())
}

func TestVersion(t *testing.T) {
	stdout, _ := setup(t, &driveStub{})

	require.NoError(t, run("version"))
	assert.Equal(t, "apnee version dev\n", stdout.String())
}

func TestRead(t *testing.T) {
	stub := &driveStub{
		files:   []map[string]string{{"id": "f1", "name": "apnee.json"}},
		content: `{"sessions":[]}`,
	}

	t.Run("content", func(t *testing.T) {
		stdout, _ := setup(t, stub)
		require.NoError(t, run("read"))
		assert.Equal(t, `{"sessions":[]}`, stdout.String())
	})

	t.Run("json", func(t *testing.T) {
		stdout, _ := setup(t, stub)
		require.NoError(t, run("read", "--json"))
		assert.JSONEq(t, `{"fileId":"f1","content":"{\"sessions\":[]}"}`, stdout.String())
	})
}

func TestRead_NotFound(t *testing.T) {
	setup(t, &driveStub{})

	err := run("read")
	require.Error(t, err)
	assert.Equal(t, "file not found !", err.Error())
}

func TestRead_MissingClientID(t *testing.T) {
	setup(t, &driveStub{})
	t.Setenv("APNEE_CLIENT_ID", "")

	err := run("read")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id is empty")
}

func TestSave_FromFile(t *testing.T) {
	stub := &driveStub{files: []map[string]string{{"id": "f1", "name": "apnee.json"}}}
	stdout, _ := setup(t, stub)

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"v":2}`), 0o600))

	require.NoError(t, run("save", path))
	assert.Equal(t, "/upload/drive/v3/files/f1", stub.uploadPath)
	assert.Contains(t, stub.uploaded, `{"v":2}`)
	assert.Equal(t, "Saved 7 bytes to f1.\n", stdout.String())
}

func TestSave_StdinWithFileID(t *testing.T) {
	stub := &driveStub{}
	setup(t, stub)
	rootCmd.SetIn(strings.NewReader(`{"v":3}`))

	require.NoError(t, run("save", "--file-id", "given"))
	assert.Equal(t, "/upload/drive/v3/files/given", stub.uploadPath)
	assert.Contains(t, stub.uploaded, `{"v":3}`)
}

func TestSave_Create(t *testing.T) {
	stub := &driveStub{}
	stdout, _ := setup(t, stub)
	rootCmd.SetIn(strings.NewReader(`{}`))

	require.NoError(t, run("save", "--create"))
	assert.Equal(t, "/upload/drive/v3/files", stub.uploadPath)
	assert.Equal(t, "Created apnee.json (ID: created-id).\n", stdout.String())
}

func TestSave_CreateWhenFileIDIsGone(t *testing.T) {
	stub := &driveStub{gone: "old"}
	stdout, _ := setup(t, stub)
	rootCmd.SetIn(strings.NewReader(`{}`))

	require.NoError(t, run("save", "--file-id", "old", "--create"))
	assert.Equal(t, "/upload/drive/v3/files", stub.uploadPath)
	assert.Equal(t, "old no longer exists, created apnee.json (ID: created-id).\n", stdout.String())
}

func TestSave_FileIDIsGone(t *testing.T) {
	stub := &driveStub{gone: "old"}
	setup(t, stub)

	err := run("save", "--file-id", "old")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to save file old")
	assert.Empty(t, stub.uploadPath)
}

func TestSave_NotFoundWithoutCreate(t *testing.T) {
	stub := &driveStub{}
	setup(t, stub)

	err := run("save")
	require.Error(t, err)
	assert.Equal(t, "file not found !", err.Error())
	assert.Empty(t, stub.uploadPath)
}

func TestSave_TooManyArgs(t *testing.T) {
	setup(t, &driveStub{})
	assert.Error(t, run("save", "a", "b"))
}

func TestLogin_InvalidRedirect(t *testing.T) {
	setup(t, &driveStub{})
	t.Setenv("APNEE_REDIRECT_URL", "http://")

	err := run("login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Contains(t, err.Error(), "invalid redirect URL")
}

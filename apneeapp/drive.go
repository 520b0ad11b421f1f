package apneeapp

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// dataMimeType is the content type the data file is written with.
const dataMimeType = "application/json"

// File represents the data file within Google Drive.
type File struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	WebContentLink string `json:"webContentLink,omitempty"`
}

// FileContent is the content of the data file, as exchanged with the front-end.
type FileContent struct {
	FileID  string `json:"fileId"`
	Content string `json:"content"`
}

// escapeQuery escapes a literal for use inside single quotes in a Drive query.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// observe feeds the outcome of a Drive call to the rate limiter, and drops the cached
// token when Drive rejected it so the next call reads the store again.
func (a *App) observe(err error) {
	a.limiter.Observe(err)
	if IsUnauthorized(err) {
		a.Auth.ts.Reset()
	}
}

// FindFile searches the user's Drive for the data file.
func (a *App) FindFile(ctx context.Context) (*File, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("name='%s'", escapeQuery(a.FileName))
	fileList, err := a.DriveService.Files.List().
		Q(query).
		PageSize(1).
		Fields("nextPageToken, files(id, name, webContentLink)").
		Context(ctx).
		Do()
	a.observe(err)
	if err != nil {
		return nil, fmt.Errorf("failed to search for %q: %w", a.FileName, err)
	}

	if len(fileList.Files) == 0 {
		return nil, ErrFileNotFound
	}
	// Drive matches names loosely, only an exact match is the data file.
	for _, f := range fileList.Files {
		if f.Name == a.FileName {
			return &File{ID: f.Id, Name: f.Name, WebContentLink: f.WebContentLink}, nil
		}
	}
	return nil, ErrDataFileNotFound
}

// ReadFile finds the data file and downloads its content.
func (a *App) ReadFile(ctx context.Context) (*FileContent, error) {
	file, err := a.FindFile(ctx)
	if err != nil {
		return nil, err
	}

	content, err := a.GetFileContent(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	return &FileContent{FileID: file.ID, Content: string(content)}, nil
}

// GetFileContent downloads and returns the content of a specific file.
func (a *App) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.DriveService.Files.Get(fileID).Context(ctx).Download()
	a.observe(err)
	if err != nil {
		return nil, fmt.Errorf("unable to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read content of file %s: %w", fileID, err)
	}
	return content, nil
}

// SaveFile replaces the content of the file fc.FileID with fc.Content.
func (a *App) SaveFile(ctx context.Context, fc FileContent) error {
	if fc.FileID == "" {
		return ErrMissingFileID
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.DriveService.Files.Update(fc.FileID, &drive.File{}).
		Media(strings.NewReader(fc.Content), googleapi.ContentType(dataMimeType)).
		Fields("id").
		Context(ctx).
		Do()
	a.observe(err)
	if err != nil {
		return fmt.Errorf("unable to save file %s: %w", fc.FileID, err)
	}
	return nil
}

// CreateFile creates the data file at the root of the user's Drive with content.
func (a *App) CreateFile(ctx context.Context, content string) (*File, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	f, err := a.DriveService.Files.Create(&drive.File{Name: a.FileName, MimeType: dataMimeType}).
		Media(strings.NewReader(content), googleapi.ContentType(dataMimeType)).
		Fields("id, name, webContentLink").
		Context(ctx).
		Do()
	a.observe(err)
	if err != nil {
		return nil, fmt.Errorf("unable to create file %q: %w", a.FileName, err)
	}
	return &File{ID: f.Id, Name: f.Name, WebContentLink: f.WebContentLink}, nil
}

// Package api is the HTTP client for the coaching server's session archive.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/promotion/posecore/pkg/core"
)

// UploadPath is the coaching server endpoint that accepts session exports.
const UploadPath = "/api/v1/sessions/add"

const (
	requestTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Client uploads exported sessions to the coaching server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Healthcheck reports whether the server answers GET /healthcheck with 200.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("build healthcheck: %w", err)
	}
	return c.do(req, "healthcheck")
}

// Upload streams an exported session file with its metadata as a
// multipart form.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.ExportMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer file.Close()

	body, form := io.Pipe()
	mw := multipart.NewWriter(form)
	written := make(chan error, 1)
	go func() {
		err := c.writeForm(mw, filepath.Base(filePath), meta, file)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		_ = form.CloseWithError(err)
		written <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, body)
	if err != nil {
		_ = body.CloseWithError(err)
		<-written
		return fmt.Errorf("build upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	err = c.do(req, "upload")
	_ = body.CloseWithError(io.ErrClosedPipe)
	if werr := <-written; werr != nil && err == nil {
		return fmt.Errorf("write upload form: %w", werr)
	}
	return err
}

func (c *Client) writeForm(mw *multipart.Writer, name string, meta core.ExportMetadata, src io.Reader) error {
	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"sessionId", meta.SessionID.String()},
		{"sport", meta.Sport},
		{"action", meta.Action},
		{"label", meta.Label},
		{"quality", strconv.FormatFloat(meta.Quality, 'f', 4, 64)},
		{"frames", strconv.Itoa(meta.Frames)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

// do sends req and turns any non-200 answer into an error carrying the
// start of the response body.
func (c *Client) do(req *http.Request, what string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(snippet)); msg != "" {
		return fmt.Errorf("%s returned status %d: %s", what, resp.StatusCode, msg)
	}
	return fmt.Errorf("%s returned status %d", what, resp.StatusCode)
}

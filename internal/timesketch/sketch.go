package timesketch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
)

// Sketch is one investigation workspace on the server.
type Sketch struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type sketchEnvelope struct {
	Objects []Sketch `json:"objects"`
	Meta    struct {
		TotalPages  int `json:"total_pages"`
		CurrentPage int `json:"current_page"`
	} `json:"meta"`
}

// ListSketches returns the sketches visible to the session user.
func (c *Client) ListSketches(ctx context.Context) ([]Sketch, error) {
	var all []Sketch
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/api/v1/sketches/?page=%d", c.baseURL, page)
		var envelope sketchEnvelope
		if err := c.doJSON(ctx, "GET", u, "list sketches", "", nil, &envelope); err != nil {
			return nil, err
		}
		all = append(all, envelope.Objects...)
		if envelope.Meta.TotalPages == 0 || page >= envelope.Meta.TotalPages {
			break
		}
	}
	return all, nil
}

// CreateSketch makes a new sketch and returns it.
func (c *Client) CreateSketch(ctx context.Context, name, description string) (*Sketch, error) {
	payload := fmt.Sprintf(`{"name":%q,"description":%q}`, name, description)
	var envelope sketchEnvelope
	err := c.doJSON(ctx, "POST", c.baseURL+"/api/v1/sketches/", "create sketch",
		"application/json", bytes.NewReader([]byte(payload)), &envelope)
	if err != nil {
		return nil, err
	}
	if len(envelope.Objects) == 0 {
		return nil, fmt.Errorf("create sketch: empty response")
	}
	return &envelope.Objects[0], nil
}

// GetOrCreateSketch finds a sketch by exact name, creating it when absent.
func (c *Client) GetOrCreateSketch(ctx context.Context, name string) (*Sketch, error) {
	sketches, err := c.ListSketches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sketches {
		if sketches[i].Name == name {
			return &sketches[i], nil
		}
	}
	return c.CreateSketch(ctx, name, "")
}

// ImportTimeline uploads a JSONL timeline file into a sketch. The timeline
// name shows up in the sketch's timeline list.
func (c *Client) ImportTimeline(ctx context.Context, sketchID int, timelineName, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("import timeline: open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("import timeline: stat %s: %w", path, err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("import timeline: build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("import timeline: read %s: %w", path, err)
	}
	fields := map[string]string{
		"name":            timelineName,
		"sketch_id":       strconv.Itoa(sketchID),
		"total_file_size": strconv.FormatInt(info.Size(), 10),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("import timeline: build form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("import timeline: build form: %w", err)
	}

	return c.doJSON(ctx, "POST", c.baseURL+"/api/v1/upload/", "import timeline",
		w.FormDataContentType(), &body, nil)
}

package track

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"coaster-builder/internal/common"

	"github.com/tailscale/hujson"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxDocumentSize caps coaster documents read from disk.
const maxDocumentSize = 1 * 1024 * 1024

// ErrInvalidDocument is returned for coaster documents that cannot be used.
var ErrInvalidDocument = errors.New("track: invalid coaster document")

// Document is the import/export form of a coaster: ordered point records.
type Document struct {
	Name   string          `json:"name,omitempty"`
	Points []DocumentPoint `json:"points"`
}

// DocumentPoint is one record of a coaster document.
type DocumentPoint struct {
	ID       string   `json:"id,omitempty"`
	Position Position `json:"position"`
}

// Position decodes either {"x":..,"y":..,"z":..} or [x, y, z].
type Position r3.Vec

// UnmarshalJSON accepts the object and the array form.
func (p *Position) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var xyz []float64
		if err := json.Unmarshal(data, &xyz); err != nil {
			return err
		}
		if len(xyz) != 3 {
			return fmt.Errorf("position array has %d components, want 3", len(xyz))
		}
		*p = Position{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		return nil
	}
	var obj struct {
		X, Y, Z *float64
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.X == nil || obj.Y == nil || obj.Z == nil {
		return errors.New("position needs x, y and z")
	}
	*p = Position{X: *obj.X, Y: *obj.Y, Z: *obj.Z}
	return nil
}

// MarshalJSON always writes the object form.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}{p.X, p.Y, p.Z})
}

// UnmarshalJSON accepts "trackPoints" as an alias of "points".
func (d *Document) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name        string          `json:"name"`
		Points      []DocumentPoint `json:"points"`
		TrackPoints []DocumentPoint `json:"trackPoints"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Name = aux.Name
	d.Points = aux.Points
	if d.Points == nil {
		d.Points = aux.TrackPoints
	}
	return nil
}

// ParseDocument decodes a coaster document from JSON or HuJSON.
// The top level may be an object with a point list or a bare array of records.
func ParseDocument(data []byte) (*Document, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	std = bytes.TrimSpace(std)

	doc := &Document{}
	if len(std) > 0 && std[0] == '[' {
		err = json.Unmarshal(std, &doc.Points)
	} else {
		err = json.Unmarshal(std, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	for i, p := range doc.Points {
		if !common.IsFinite(r3.Vec(p.Position)) {
			return nil, fmt.Errorf("%w: record %d has non-finite position", ErrInvalidDocument, i)
		}
	}
	return doc, nil
}

// LoadDocument reads a coaster document from disk.
// The path must end in .json or .hujson and the file must be under 1MB.
func LoadDocument(path string) (*Document, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" && ext != ".hujson" {
		return nil, fmt.Errorf("coaster file must have .json or .hujson extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat coaster file: %w", err)
	}
	if fileInfo.Size() > maxDocumentSize {
		return nil, fmt.Errorf("coaster file too large: %d bytes (max %d)", fileInfo.Size(), maxDocumentSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read coaster file: %w", err)
	}
	return ParseDocument(data)
}

// DocumentFromTrack captures the current point sequence.
func DocumentFromTrack(name string, t *Track) *Document {
	doc := &Document{Name: name, Points: make([]DocumentPoint, 0, t.Len())}
	for _, p := range t.points {
		doc.Points = append(doc.Points, DocumentPoint{ID: string(p.ID), Position: Position(p.Position)})
	}
	return doc
}

// ControlPoints converts the records for Track.Replace.
func (d *Document) ControlPoints() []ControlPoint {
	out := make([]ControlPoint, len(d.Points))
	for i, p := range d.Points {
		out[i] = ControlPoint{ID: PointID(p.ID), Position: r3.Vec(p.Position)}
	}
	return out
}

// Marshal encodes the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Save writes the document to path.
func (d *Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

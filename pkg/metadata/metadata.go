package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"xscraper/pkg/models"
)

// Format is an output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or yaml)", s)
	}
}

// FormatForPath picks the format from a file extension, falling back to def
func FormatForPath(path string, def Format) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return def
	}
}

// Document is the result of one lookup as written to disk or stdout
type Document struct {
	RetrievedAt time.Time        `json:"retrieved_at" yaml:"retrieved_at"`
	Posts       []*models.Post   `json:"posts,omitempty" yaml:"posts,omitempty"`
	Authors     []*models.Author `json:"authors,omitempty" yaml:"authors,omitempty"`
}

// NewDocument stamps a Document with the current time
func NewDocument(posts []*models.Post, authors []*models.Author) *Document {
	return &Document{RetrievedAt: time.Now().UTC(), Posts: posts, Authors: authors}
}

// Encode writes doc to w
func Encode(w io.Writer, doc *Document, format Format, pretty bool) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		if pretty {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Save writes doc to path, replacing any previous file
func Save(path string, doc *Document, format Format, pretty bool) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format, pretty); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a Document written by Save. The format follows the extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var doc Document
	if FormatForPath(path, FormatJSON) == FormatYAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &doc, nil
}

// Excerpt returns a single-line, rune-safe preview of text for display
func Excerpt(text string, maxLength int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if maxLength <= 3 || len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength-3]) + "..."
}

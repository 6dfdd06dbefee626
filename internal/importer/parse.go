// Package importer turns text files into knowledge nodes and keeps them in sync with the files.
package importer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/syntra/internal/models"
)

const delimiter = "---"

// frontMatter is the optional YAML header of an imported file.
type frontMatter struct {
	Title string   `yaml:"title"`
	Type  string   `yaml:"type"`
	Tags  []string `yaml:"tags"`
}

// Parse builds the node input for the file at path with contents data. A leading YAML block
// delimited by "---" lines may set title, type and tags; the rest of the file is the content.
// The title defaults to the file name without extension, the type to defaultType. The source is
// always path.
func Parse(path string, data []byte, defaultType models.NodeType) (models.NodeInput, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return models.NodeInput{}, fmt.Errorf("%w: %s: %w", models.ErrValidation, filepath.Base(path), err)
	}

	in := models.NodeInput{
		Type:    defaultType,
		Title:   strings.TrimSpace(meta.Title),
		Content: strings.TrimSpace(string(body)),
		Source:  path,
		Tags:    meta.Tags,
	}
	if in.Title == "" {
		base := filepath.Base(path)
		in.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if meta.Type != "" {
		t, err := models.ParseNodeType(meta.Type)
		if err != nil {
			return models.NodeInput{}, err
		}
		in.Type = t
	}
	return in, nil
}

func splitFrontMatter(data []byte) (frontMatter, []byte, error) {
	var meta frontMatter
	text := string(data)
	if !strings.HasPrefix(text, delimiter+"\n") {
		return meta, data, nil
	}
	rest := text[len(delimiter)+1:]

	var header, body string
	switch {
	case strings.HasPrefix(rest, delimiter+"\n"):
		body = rest[len(delimiter)+1:]
	case rest == delimiter:
	default:
		if end := strings.Index(rest, "\n"+delimiter+"\n"); end >= 0 {
			header, body = rest[:end], rest[end+len(delimiter)+2:]
		} else if strings.HasSuffix(rest, "\n"+delimiter) {
			header = strings.TrimSuffix(rest, "\n"+delimiter)
		} else {
			// No closing delimiter: the whole file is content.
			return meta, data, nil
		}
	}

	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return meta, nil, fmt.Errorf("invalid front matter: %w", err)
	}
	return meta, []byte(body), nil
}

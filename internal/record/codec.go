package record

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---\n"

// Encode renders a record as a markdown file with YAML frontmatter.
// The frontmatter carries every field except the description, which
// becomes the markdown body.
func Encode(rec *Record) ([]byte, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("cannot encode record without id")
	}
	if rec.Key == "" {
		return nil, fmt.Errorf("cannot encode record %s without key", rec.ID)
	}

	meta, err := yaml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.Write(meta)
	buf.WriteString(frontmatterDelim)
	if rec.Description != "" {
		buf.WriteString("\n")
		buf.WriteString(rec.Description)
		if !strings.HasSuffix(rec.Description, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a record file back into a Record. The inverse of Encode.
func Decode(data []byte) (*Record, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim) {
		return nil, fmt.Errorf("record file missing frontmatter delimiter")
	}
	rest := text[len(frontmatterDelim):]

	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return nil, fmt.Errorf("record file missing closing frontmatter delimiter")
	}
	header := rest[:end+1]
	body := rest[end+1+len(frontmatterDelim):]

	var rec Record
	if err := yaml.Unmarshal([]byte(header), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record frontmatter: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("record file has no id")
	}

	rec.Description = strings.TrimPrefix(body, "\n")
	rec.Description = strings.TrimSuffix(rec.Description, "\n")
	return &rec, nil
}

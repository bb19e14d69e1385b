// Package document reads and writes the markdown files that back the board:
// YAML frontmatter, "## Heading" sections, checkbox lists and template
// placeholders. It knows nothing about workflow rules.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("document: missing frontmatter")
	// ErrMalformedFrontMatter indicates the closing fence was not found.
	ErrMalformedFrontMatter = errors.New("document: malformed frontmatter")
)

// Split separates the frontmatter block from the body. The body is returned
// with leading blank lines removed.
func Split(content []byte) (meta []byte, body string, err error) {
	normalized := normalizeNewlines(content)
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, "", ErrMissingFrontMatter
	}
	rest := normalized[4:]
	if bytes.HasPrefix(rest, []byte("---\n")) {
		return nil, strings.TrimLeft(string(rest[4:]), "\n"), nil
	}
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		// A document that is nothing but frontmatter.
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-4], "", nil
		}
		return nil, "", ErrMalformedFrontMatter
	}
	return parts[0], strings.TrimLeft(string(parts[1]), "\n"), nil
}

// Decode parses the frontmatter of content into v and returns the body.
func Decode(content []byte, v any) (string, error) {
	meta, body, err := Split(content)
	if err != nil {
		return "", err
	}
	if err := yaml.Unmarshal(meta, v); err != nil {
		return "", fmt.Errorf("document: parse frontmatter: %w", err)
	}
	return body, nil
}

// Encode renders v as YAML frontmatter followed by body.
func Encode(v any, body string) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("document: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}

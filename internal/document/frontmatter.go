// Package document renders an assessment as a markdown report headed by a
// YAML frontmatter block. The frontmatter carries the borrower input, so a
// saved report can be fed back to `greenlight assess --input` to score the
// same borrower again.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/greenlight/internal/borrower"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("document: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("document: malformed frontmatter")
	// ErrChecksumMismatch indicates the embedded input was edited after rendering.
	ErrChecksumMismatch = errors.New("document: input checksum mismatch")
)

const timeLayout = time.RFC3339

// Metadata is the machine-readable header of a report.
type Metadata struct {
	RunID      string
	Generation uint64
	Phase      string
	Status     string
	Score      float64
	CreatedAt  time.Time
	Checksum   string
	Input      borrower.Input
}

type envelope struct {
	Greenlight header `yaml:"greenlight"`
}

type header struct {
	RunID      string         `yaml:"run_id"`
	Generation uint64         `yaml:"generation"`
	Phase      string         `yaml:"phase"`
	Status     string         `yaml:"status,omitempty"`
	Score      float64        `yaml:"green_credit_score,omitempty"`
	Created    string         `yaml:"created"`
	Checksum   string         `yaml:"checksum,omitempty"`
	Input      borrower.Input `yaml:"input"`
}

// Checksum fingerprints a borrower record.
func Checksum(in borrower.Input) (string, error) {
	data, err := yaml.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("document: encode input: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// WriteFrontMatter renders metadata + body with YAML fences.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if strings.TrimSpace(meta.RunID) == "" {
		return nil, fmt.Errorf("document: metadata missing run id")
	}
	env := envelope{Greenlight: header{
		RunID:      meta.RunID,
		Generation: meta.Generation,
		Phase:      meta.Phase,
		Status:     meta.Status,
		Score:      meta.Score,
		Created:    meta.CreatedAt.UTC().Format(timeLayout),
		Checksum:   meta.Checksum,
		Input:      meta.Input,
	}}
	data, err := yaml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("document: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParseFrontMatter extracts the metadata block and body. A present checksum
// must match the embedded input.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	env := envelope{Greenlight: header{Input: borrower.Default()}}
	if err := yaml.Unmarshal(parts[0], &env); err != nil {
		return Metadata{}, nil, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	h := env.Greenlight
	if h.RunID == "" || h.Created == "" {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	created, err := time.Parse(timeLayout, h.Created)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("document: parse created timestamp: %w", err)
	}
	if h.Checksum != "" {
		sum, err := Checksum(h.Input)
		if err != nil {
			return Metadata{}, nil, err
		}
		if sum != h.Checksum {
			return Metadata{}, nil, ErrChecksumMismatch
		}
	}
	h.Input.Clamp()
	return Metadata{
		RunID:      h.RunID,
		Generation: h.Generation,
		Phase:      h.Phase,
		Status:     h.Status,
		Score:      h.Score,
		CreatedAt:  created.UTC(),
		Checksum:   h.Checksum,
		Input:      h.Input,
	}, bytes.TrimLeft(parts[1], "\n"), nil
}

// LoadInput reads the borrower record embedded in a saved report.
func LoadInput(path string) (borrower.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return borrower.Input{}, fmt.Errorf("document: read %s: %w", path, err)
	}
	meta, _, err := ParseFrontMatter(data)
	if err != nil {
		return borrower.Input{}, fmt.Errorf("document: %s: %w", path, err)
	}
	return meta.Input, nil
}

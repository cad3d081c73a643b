// Package storage provides SnapshotLoader implementations backed by a
// snapshot file, SQLite and PostgreSQL.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// DefaultPollInterval is how often FileLoader checks its file for changes.
const DefaultPollInterval = 2 * time.Second

// snapshotDocument is the wrapped snapshot file layout. A bare list of
// agents is accepted as well.
type snapshotDocument struct {
	Agents []domain.AgentMetric `json:"agents" yaml:"agents"`
}

// FileLoader reads the cohort from a JSON or YAML snapshot file on every
// load. The format follows the file extension: .json is JSON with camelCase
// keys, .yaml and .yml are YAML with snake_case keys.
//
// FileLoader also implements ports.ChangeNotifier by polling the file's
// modification time and size. Only one goroutine may call WaitForChange.
type FileLoader struct {
	path     string
	interval time.Duration
	last     fileStamp
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// NewFileLoader creates a loader for path. The file is not read until the
// first LoadCohort call.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path, interval: DefaultPollInterval}
}

// WithPollInterval sets how often WaitForChange stats the file.
func (l *FileLoader) WithPollInterval(d time.Duration) *FileLoader {
	if d > 0 {
		l.interval = d
	}
	return l
}

// Name implements ports.SnapshotLoader.
func (l *FileLoader) Name() string { return "file" }

// LoadCohort implements ports.SnapshotLoader.
func (l *FileLoader) LoadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.NewLoaderError(l.Name(), "read", err)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, ports.NewLoaderError(l.Name(), "read", err)
	}

	cohort, err := DecodeSnapshot(data, formatOf(l.path))
	if err != nil {
		return nil, ports.NewLoaderError(l.Name(), "decode", err)
	}
	return cohort, nil
}

// WaitForChange implements ports.ChangeNotifier. The first call records the
// file's current state and waits for it to differ.
func (l *FileLoader) WaitForChange(ctx context.Context) (string, error) {
	if l.last == (fileStamp{}) {
		l.last, _ = l.stat()
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			cur, err := l.stat()
			if err != nil {
				// A file being replaced may briefly not exist.
				continue
			}
			if cur != l.last {
				l.last = cur
				return l.path, nil
			}
		}
	}
}

func (l *FileLoader) stat() (fileStamp, error) {
	fi, err := os.Stat(l.path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: fi.ModTime(), size: fi.Size()}, nil
}

// Format is a snapshot file encoding.
type Format string

// Supported snapshot formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeSnapshot parses a snapshot in the given format. Both a bare list of
// agents and a document with an "agents" key are accepted. Unknown fields
// are rejected.
func DecodeSnapshot(data []byte, format Format) ([]domain.AgentMetric, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []domain.AgentMetric{}, nil
	}

	switch format {
	case FormatYAML:
		return decodeYAML(trimmed)
	case FormatJSON:
		return decodeJSON(trimmed)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ports.ErrInvalidSnapshot, format)
	}
}

func decodeJSON(data []byte) ([]domain.AgentMetric, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if data[0] == '[' {
		var agents []domain.AgentMetric
		if err := dec.Decode(&agents); err != nil {
			return nil, fmt.Errorf("%w: JSON decode failed: %w", ports.ErrInvalidSnapshot, err)
		}
		return nonNil(agents), nil
	}

	var doc snapshotDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: JSON decode failed: %w", ports.ErrInvalidSnapshot, err)
	}
	return nonNil(doc.Agents), nil
}

func decodeYAML(data []byte) ([]domain.AgentMetric, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: YAML decode failed: %w", ports.ErrInvalidSnapshot, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if len(root.Content) > 0 && root.Content[0].Kind == yaml.SequenceNode {
		var agents []domain.AgentMetric
		if err := dec.Decode(&agents); err != nil {
			return nil, fmt.Errorf("%w: YAML decode failed: %w", ports.ErrInvalidSnapshot, err)
		}
		return nonNil(agents), nil
	}

	var doc snapshotDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: YAML decode failed: %w", ports.ErrInvalidSnapshot, err)
	}
	return nonNil(doc.Agents), nil
}

// EncodeSnapshot writes cohort as a snapshot document in the given format.
func EncodeSnapshot(cohort []domain.AgentMetric, format Format) ([]byte, error) {
	doc := snapshotDocument{Agents: nonNil(cohort)}
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ports.ErrInvalidSnapshot, format)
	}
}

func nonNil(agents []domain.AgentMetric) []domain.AgentMetric {
	if agents == nil {
		return []domain.AgentMetric{}
	}
	return agents
}

var (
	_ ports.SnapshotLoader = (*FileLoader)(nil)
	_ ports.ChangeNotifier = (*FileLoader)(nil)
)

package sourcing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RecordSink persists the ranked candidates of a round.
type RecordSink interface {
	Write(ctx context.Context, round int, candidates []*Candidate) (string, error)
}

// JSONFileSink writes candidates_<YYYY-MM-DD>_round<N>.json into Dir.
type JSONFileSink struct {
	Dir string
	now func() time.Time
}

func NewJSONFileSink(dir string) *JSONFileSink {
	if dir == "" {
		dir = "data"
	}
	return &JSONFileSink{Dir: dir, now: time.Now}
}

// Path returns the file a round is written to.
func (s *JSONFileSink) Path(round int) string {
	name := fmt.Sprintf("candidates_%s_round%d.json", s.now().Format(time.DateOnly), round)
	return filepath.Join(s.Dir, name)
}

// Write stores candidates as an indented JSON array and returns the file path.
func (s *JSONFileSink) Write(_ context.Context, round int, candidates []*Candidate) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	if candidates == nil {
		candidates = []*Candidate{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(candidates); err != nil {
		return "", fmt.Errorf("encoding candidates: %w", err)
	}

	path := s.Path(round)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing candidates: %w", err)
	}

	return path, nil
}

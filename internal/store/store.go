package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/san-kum/pbdsim/internal/sim"
)

const summaryFile = "summary.json"

// Store is an output directory holding the trace files of one run and its
// summary.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	if baseDir == "" {
		baseDir = "."
	}
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}

func (s *Store) Dir() string { return s.baseDir }

// TracePath is the path of group i's trace file.
func (s *Store) TracePath(i int) string {
	return filepath.Join(s.baseDir, TraceName(i))
}

// TraceObserver returns the trace writer suited to mode. The returned close
// function must be called once the run is over.
func (s *Store) TraceObserver(mode sim.Mode) (sim.Observer, func() error) {
	if mode == sim.EndsOnly {
		return NewEndsWriter(s.baseDir), func() error { return nil }
	}
	w := NewTraceWriter(s.baseDir)
	return w, w.Close
}

type RunMetadata struct {
	Timestamp time.Time  `json:"timestamp"`
	Seed      int64      `json:"seed"`
	Dt        float64    `json:"dt"`
	Config    string     `json:"config,omitempty"`
	Result    sim.Result `json:"result"`
}

func (s *Store) SaveSummary(meta RunMetadata) (err error) {
	f, err := os.Create(filepath.Join(s.baseDir, summaryFile))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing %s: %w", summaryFile, cerr))
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("writing %s: %w", summaryFile, err)
	}
	return nil
}

func (s *Store) LoadSummary() (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, summaryFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", summaryFile, err)
	}
	return &meta, nil
}

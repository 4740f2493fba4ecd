package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileName is the JSONL audit log written next to the processed output.
const FileName = "corrections.jsonl"

// JSONLog accumulates corrections in memory and persists them as JSON lines.
type JSONLog struct {
	mu      sync.Mutex
	dir     string
	records []Correction
}

// NewJSONLog creates a log that saves into dir.
func NewJSONLog(dir string) *JSONLog {
	return &JSONLog{dir: dir}
}

// Write appends records stamped with runID and saves the log.
func (l *JSONLog) Write(runID string, records []Correction) error {
	l.mu.Lock()
	for _, r := range records {
		r.RunID = runID
		l.records = append(l.records, r)
	}
	l.mu.Unlock()
	return l.Save()
}

// Records returns a copy of the accumulated records.
func (l *JSONLog) Records() []Correction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Correction, len(l.records))
	copy(out, l.records)
	return out
}

// Save writes every record to <dir>/corrections.jsonl through a temp file and rename.
func (l *JSONLog) Save() error {
	l.mu.Lock()
	data := make([]Correction, len(l.records))
	copy(data, l.records)
	l.mu.Unlock()

	path := filepath.Join(l.dir, FileName)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp audit file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, r := range data {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode correction: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename audit file: %w", err)
	}

	log.Info().Str("path", path).Int("count", len(data)).Msg("Correction audit saved")
	return nil
}

// LoadJSONL reads corrections from a JSONL file. Invalid lines are skipped with a warning.
func LoadJSONL(path string) ([]Correction, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	var out []Correction
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var c Correction
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid JSON line in audit file")
			continue
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading audit file: %w", err)
	}
	return out, nil
}

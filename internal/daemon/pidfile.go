// Package daemon tracks the background API server through a small state
// file holding its process id and listen port.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is what a running background server leaves behind.
type Record struct {
	PID  int
	Port int
}

// PIDFile manages the state file for a background server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records pid and port, creating the parent directory if needed.
// The format is "<pid> <port>\n".
func (p *PIDFile) Write(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	line := fmt.Sprintf("%d %d\n", rec.PID, rec.Port)
	return os.WriteFile(p.Path, []byte(line), 0o644)
}

// Read parses the state file. A file holding only a pid is accepted with
// Port left at zero.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 || len(fields) > 2 {
		return Record{}, fmt.Errorf("invalid PID file content: %q", strings.TrimSpace(string(data)))
	}

	var rec Record
	if rec.PID, err = strconv.Atoi(fields[0]); err != nil || rec.PID < 1 {
		return Record{}, fmt.Errorf("invalid PID file content: %q", fields[0])
	}
	if len(fields) == 2 {
		if rec.Port, err = strconv.Atoi(fields[1]); err != nil {
			return Record{}, fmt.Errorf("invalid PID file content: port %q", fields[1])
		}
	}
	return rec, nil
}

// Remove deletes the state file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

package activity

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FileTracker appends activities as JSON lines to a file.
type FileTracker struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// DefaultFilePath returns ~/.local/share/relaychat/activity.jsonl, or a temp
// dir fallback when the home directory is unavailable.
func DefaultFilePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "relaychat", "activity.jsonl")
	}
	return filepath.Join(os.TempDir(), "relaychat", "activity.jsonl")
}

// NewFileTracker opens path for appending, creating parent directories.
func NewFileTracker(path string) (*FileTracker, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFilePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create activity directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open activity log %s: %w", path, err)
	}
	return &FileTracker{file: f, enc: json.NewEncoder(f), path: path}, nil
}

func (ft *FileTracker) Record(_ context.Context, a Activity) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.file == nil {
		return fmt.Errorf("activity log %s is closed", ft.path)
	}
	if err := ft.enc.Encode(a); err != nil {
		return fmt.Errorf("write activity: %w", err)
	}
	return nil
}

// Recent reads the last n activities from the log file, newest first.
// Lines that fail to decode are skipped.
func (ft *FileTracker) Recent(_ context.Context, n int) ([]Activity, error) {
	if n <= 0 {
		n = defaultRecent
	}
	f, err := os.Open(ft.path)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	var out []Activity
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		var a Activity
		if json.Unmarshal(scanner.Bytes(), &a) == nil {
			out = append(out, a)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	slices.Reverse(out)
	return out, nil
}

func (ft *FileTracker) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.file == nil {
		return nil
	}
	err := ft.file.Close()
	ft.file = nil
	return err
}

package live

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SessionLog is an append-only file of observed session ids, one per line.
// An id already present is not written again.
type SessionLog struct {
	path string
	mu   sync.Mutex
}

// NewSessionLog uses the file at path, created on first write.
func NewSessionLog(path string) *SessionLog {
	return &SessionLog{path: path}
}

// Path returns the backing file path.
func (l *SessionLog) Path() string { return l.path }

// Record appends id unless an identical line exists.
func (l *SessionLog) Record(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("empty session id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.read()
	if err != nil {
		return err
	}
	for _, known := range ids {
		if known == id {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create session log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append session id: %w", err)
	}
	return f.Close()
}

// Last returns the most recently recorded id, or "" when none was recorded.
func (l *SessionLog) Last() (string, error) {
	ids, err := l.IDs()
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[len(ids)-1], nil
}

// IDs returns every recorded id in recording order.
func (l *SessionLog) IDs() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *SessionLog) read() ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}
	return ids, nil
}

package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"pokewatch/internal/model"
)

var (
	ErrInvalidName = errors.New("invalid snapshot name")
	ErrNotFound    = errors.New("snapshot not found")

	// validName matches only what Save produces:
	// <target>-<provider>-<yyyymmdd>-<hhmmss>.<micros>.(html|json)
	validName = regexp.MustCompile(`^[A-Za-z0-9_-]+-[A-Za-z0-9_-]+-[0-9]{8}-[0-9]{6}\.[0-9]{6}\.(html|json)$`)
	unsafe    = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

const timestampLayout = "20060102-150405.000000"

// Store writes raw provider content to disk for manual inspection when a page
// yields no product links. Writes happen in the background and failures are
// only logged.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger.Named("snapshot"), now: time.Now}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save schedules content to be written and returns the file name it will have.
func (s *Store) Save(target string, content model.Content) string {
	ext := ".html"
	if content.Kind == model.ContentJSON {
		ext = ".json"
	}
	name := fmt.Sprintf("%s-%s-%s%s",
		clean(target), clean(content.Provider), s.now().UTC().Format(timestampLayout), ext)

	body := append([]byte(nil), content.Body...)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.write(name, body); err != nil {
			s.logger.Warn("snapshot write failed", zap.String("file", name), zap.Error(err))
			return
		}
		s.logger.Info("snapshot saved", zap.String("file", name), zap.Int("bytes", len(body)))
	}()
	return name
}

// Wait blocks until scheduled writes have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) write(name string, body []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), body, 0o644)
}

// Path resolves a snapshot name to a file inside the store directory.
func (s *Store) Path(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

func clean(s string) string {
	s = unsafe.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

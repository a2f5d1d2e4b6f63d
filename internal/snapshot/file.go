package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

var dayFilePattern = regexp.MustCompile(`^day_(\d+)\.json$`)

// FileStore keeps one JSON file per day in a directory: day_<N>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the snapshot files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path for a day's snapshot.
func (s *FileStore) Path(day int) string {
	return filepath.Join(s.dir, fmt.Sprintf("day_%d.json", day))
}

// Load reads the snapshot for day.
func (s *FileStore) Load(ctx context.Context, day int) ([]listing.Record, error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(day))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("day %d: %w", day, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	records := []listing.Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing snapshot day %d: %w", day, err)
	}
	return records, nil
}

// Save writes the snapshot to a temporary file, syncs it, and links it into
// place, so readers see either the whole snapshot or nothing. An existing
// day is never replaced.
func (s *FileStore) Save(ctx context.Context, day int, records []listing.Record) error {
	if err := checkDay(day); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(day)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("day %d: %w", day, ErrExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking snapshot: %w", err)
	}

	if records == nil {
		records = []listing.Record{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := writeFileOnce(path, data); err != nil {
		if errors.Is(err, ErrExists) {
			return fmt.Errorf("day %d: %w", day, ErrExists)
		}
		return fmt.Errorf("writing snapshot day %d: %w", day, err)
	}
	return nil
}

// Latest returns the snapshot with the highest day number.
func (s *FileStore) Latest(ctx context.Context) (int, []listing.Record, error) {
	days, err := s.Days()
	if err != nil {
		return 0, nil, err
	}
	if len(days) == 0 {
		return 0, nil, ErrNotFound
	}
	day := days[len(days)-1]
	records, err := s.Load(ctx, day)
	if err != nil {
		return 0, nil, err
	}
	return day, records, nil
}

// Days lists the days that have a snapshot file, ascending.
func (s *FileStore) Days() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	var days []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := dayFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		day, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

// WriteFileAtomic writes data to path through a synced temporary file in the
// same directory followed by a rename. An existing file is replaced.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// writeFileOnce publishes data at path with a hard link from a synced
// temporary file. The link fails if path exists, so concurrent writers
// cannot replace each other's file.
func writeFileOnce(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("linking temp file: %w", err)
	}
	return nil
}

// writeTemp writes data to a synced temporary file next to path and returns its name.
func writeTemp(path string, data []byte) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	return tmp.Name(), nil
}

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"

	"shorts-stack/internal/models"
)

// ErrCorruptStore is returned when the backing document cannot be decoded or
// fails schema validation. It is never repaired automatically.
var ErrCorruptStore = errors.New("corrupt video store")

// VideoStore persists the whole models.VideoStore document as one JSON file.
// Every operation holds the same mutex, so reads and writes never interleave.
type VideoStore struct {
	filePath string
	dirs     []string
	validate *validator.Validate
	mu       sync.Mutex
}

// NewVideoStore creates a store backed by dataFile. The extra dirs are created
// alongside the data directory before any I/O.
func NewVideoStore(dataFile string, dirs ...string) *VideoStore {
	return &VideoStore{
		filePath: dataFile,
		dirs:     dirs,
		validate: validator.New(),
	}
}

// Path returns the backing file path.
func (s *VideoStore) Path() string {
	return s.filePath
}

// Read loads and validates the document.
func (s *VideoStore) Read() (*models.VideoStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Write replaces the backing document with doc.
func (s *VideoStore) Write(doc *models.VideoStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(); err != nil {
		return err
	}
	return s.save(doc)
}

// Update runs a read-modify-write cycle under one lock acquisition. fn reports
// whether it changed the document; the file is rewritten only in that case.
func (s *VideoStore) Update(fn func(doc *models.VideoStore) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.save(doc)
}

// ensure creates the required directories and seeds an empty document.
func (s *VideoStore) ensure() error {
	for _, dir := range append([]string{filepath.Dir(s.filePath)}, s.dirs...) {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(s.filePath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat store file: %w", err)
	}

	return s.save(&models.VideoStore{})
}

// load reads the document; caller holds mu.
func (s *VideoStore) load() (*models.VideoStore, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var doc models.VideoStore
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.filePath, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: trailing data after document", ErrCorruptStore, s.filePath)
	}
	if err := checkRequiredFields(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.filePath, err)
	}
	if err := s.validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.filePath, err)
	}

	normalize(&doc)
	return &doc, nil
}

// save writes doc through a temp file and renames it over the store file; caller holds mu.
func (s *VideoStore) save(doc *models.VideoStore) error {
	normalize(doc)

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".videos-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// CreateTemp opens with 0600; keep the mode readers of the store expect.
	mode := os.FileMode(0644)
	if info, err := os.Stat(s.filePath); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set store file mode: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// normalize turns nil slices into empty ones so the document never carries null arrays.
func normalize(doc *models.VideoStore) {
	if doc.Videos == nil {
		doc.Videos = []models.VideoItem{}
	}
	if doc.History == nil {
		doc.History = []models.VideoItem{}
	}
	for _, list := range [][]models.VideoItem{doc.Videos, doc.History} {
		for i := range list {
			if list[i].RetentionNotes == nil {
				list[i].RetentionNotes = []string{}
			}
			if a := list[i].Analytics; a != nil {
				if a.DropOffMoments == nil {
					a.DropOffMoments = []models.DropOffMoment{}
				}
				if a.ImprovementIdeas == nil {
					a.ImprovementIdeas = []string{}
				}
			}
		}
	}
}

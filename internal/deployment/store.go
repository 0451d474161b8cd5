package deployment

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/receiver-deployer/internal/infra/filesystem"
	"github.com/compose-network/receiver-deployer/internal/logger"
)

// Store loads and saves the deployment record file. Saving overwrites the whole file;
// concurrent runs against the same file race and the last writer wins.
type Store struct {
	path   string
	reader filesystem.Reader
	writer filesystem.Writer
	logger *slog.Logger
}

// NewStore creates a store for the record file at path
func NewStore(path string, reader filesystem.Reader, writer filesystem.Writer) *Store {
	return &Store{
		path:   path,
		reader: reader,
		writer: writer,
		logger: logger.Named("deployment_store"),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the record. A missing file yields an empty record.
func (s *Store) Load() (Record, error) {
	record := NewRecord()

	found, err := s.reader.ReadJSONIfExists(s.path, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment record '%s': %w", s.path, err)
	}
	if !found {
		s.logger.With("path", s.path).Info("deployment record not found, starting from an empty record")
		return NewRecord(), nil
	}
	if record == nil {
		// the file contained a JSON null
		record = NewRecord()
	}

	s.logger.With("path", s.path).With("networks", record.Networks()).Debug("deployment record loaded")

	return record, nil
}

// Save overwrites the record file with record.
func (s *Store) Save(record Record) error {
	if err := s.writer.WriteJSON(s.path, record); err != nil {
		return fmt.Errorf("failed to write deployment record '%s': %w", s.path, err)
	}

	return nil
}

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/vmihailenco/msgpack/v5"

	"audio-analyzer/pkg/models"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

const analysisKeyPrefix = "analysis/"

type DiskStore interface {
	StoreAnalysis(analysis *models.Analysis) error
	GetAnalysis(id string) (*models.Analysis, error)
	ListAnalyses(limit int) ([]*models.Analysis, error)
	Close() error
}

type diskStore struct {
	db *badger.DB
}

// NewDiskStore opens a badger database under path/badger.
func NewDiskStore(path string) (DiskStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskStore{db: db}, nil
}

// NewInMemoryDiskStore runs badger without touching the filesystem.
func NewInMemoryDiskStore() (DiskStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger database: %w", err)
	}

	return &diskStore{db: db}, nil
}

func (s *diskStore) StoreAnalysis(analysis *models.Analysis) error {
	data, err := encodeAnalysis(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(analysisKey(analysis.ID), data)
	})
}

func (s *diskStore) GetAnalysis(id string) (*models.Analysis, error) {
	var analysis *models.Analysis

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(analysisKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			analysis, err = decodeAnalysis(val)
			return err
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrAnalysisNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return analysis, nil
}

// ListAnalyses returns the newest analyses first. A non-positive limit means
// no limit.
func (s *diskStore) ListAnalyses(limit int) ([]*models.Analysis, error) {
	var analyses []*models.Analysis

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(analysisKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				analysis, err := decodeAnalysis(val)
				if err != nil {
					return err
				}
				analyses = append(analyses, analysis)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	sortNewestFirst(analyses)
	if limit > 0 && len(analyses) > limit {
		analyses = analyses[:limit]
	}
	return analyses, nil
}

func (s *diskStore) Close() error {
	return s.db.Close()
}

func analysisKey(id string) []byte {
	return []byte(analysisKeyPrefix + id)
}

func encodeAnalysis(analysis *models.Analysis) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(analysis); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAnalysis(data []byte) (*models.Analysis, error) {
	var analysis models.Analysis
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}

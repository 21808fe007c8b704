package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/graphweave/graphweave/internal/core/model"
)

const (
	runPrefix     = "run:"
	summaryPrefix = "summary:"
	latestRunKey  = "latest-run"
)

// BadgerStore is the embedded BadgerDB implementation of Store.
type BadgerStore struct {
	db *badger.DB
}

// Options configures the store. InMemory mode keeps everything off disk,
// used by tests.
type Options struct {
	Path     string
	InMemory bool
}

func NewBadgerStore(opts Options) (*BadgerStore, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) StoreDetectionRun(ctx context.Context, result *model.DetectionResult) (string, error) {
	runID := uuid.New().String()
	run := model.DetectionRun{
		RunID:       runID,
		Result:      *result,
		PersistedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("failed to encode detection run: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(runPrefix+runID), data); err != nil {
			return err
		}
		return txn.Set([]byte(latestRunKey), []byte(runID))
	})
	if err != nil {
		return "", fmt.Errorf("failed to store detection run: %w", err)
	}
	return runID, nil
}

func (s *BadgerStore) GetLatestDetectionRun(ctx context.Context) (*model.DetectionRun, error) {
	var run *model.DetectionRun
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestRunKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		runID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get([]byte(runPrefix + string(runID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r model.DetectionRun
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("failed to decode detection run: %w", err)
			}
			run = &r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read latest detection run: %w", err)
	}
	return run, nil
}

func (s *BadgerStore) GetCommunitiesByRunID(ctx context.Context, runID string) ([]model.Community, error) {
	var communities []model.Community
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("detection run %s not found", runID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var run model.DetectionRun
			if err := json.Unmarshal(val, &run); err != nil {
				return fmt.Errorf("failed to decode detection run: %w", err)
			}
			communities = run.Result.Communities
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return communities, nil
}

func (s *BadgerStore) StoreSummary(ctx context.Context, communityID string, summary *model.CommunitySummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(summaryPrefix+communityID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store summary %s: %w", communityID, err)
	}
	return nil
}

func (s *BadgerStore) StoreSummariesBatch(ctx context.Context, summaries map[string]*model.CommunitySummary) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for id, summary := range summaries {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode summary %s: %w", id, err)
		}
		if err := wb.Set([]byte(summaryPrefix+id), data); err != nil {
			return fmt.Errorf("failed to batch summary %s: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary batch: %w", err)
	}
	return nil
}

func (s *BadgerStore) GetSummary(ctx context.Context, communityID string) (*model.CommunitySummary, error) {
	var summary *model.CommunitySummary
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(summaryPrefix + communityID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var sm model.CommunitySummary
			if err := json.Unmarshal(val, &sm); err != nil {
				return fmt.Errorf("failed to decode summary: %w", err)
			}
			summary = &sm
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read summary %s: %w", communityID, err)
	}
	return summary, nil
}

func (s *BadgerStore) GetAllSummaries(ctx context.Context) (map[string]*model.CommunitySummary, error) {
	summaries := make(map[string]*model.CommunitySummary)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(summaryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key())[len(summaryPrefix):]
			err := item.Value(func(val []byte) error {
				var sm model.CommunitySummary
				if err := json.Unmarshal(val, &sm); err != nil {
					return fmt.Errorf("failed to decode summary %s: %w", id, err)
				}
				summaries[id] = &sm
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

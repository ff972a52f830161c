package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shopledger/internal/adapters"
	"shopledger/internal/amqp"
	"shopledger/internal/store/memory"
	"shopledger/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *slog.Logger
	observer adapters.WriteObserver
}

// NewFactory creates a new backend factory. Transaction writes are reported
// to observer when it is not nil.
func NewFactory(logger *slog.Logger, observer adapters.WriteObserver) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:   logger,
		observer: observer,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(config, res)
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	if err := storage.RunMigrations(config.SQLiteDBPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Stores: Stores{
			Categories:   repo,
			Transactions: repo,
			Products:     repo,
			Logs:         repo,
			Flags:        repo,
		},
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	s := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Stores: Stores{
			Categories:   s,
			Transactions: s,
			Products:     s,
			Logs:         s,
			Flags:        s,
		},
		Ping:    func(context.Context) error { return nil },
		Cleanup: nil,
	}, nil
}

// attachPublisher connects the optional broker and decorates the transaction
// table so committed writes are published. A broker that cannot be reached
// leaves the backend running without publication.
func (f *DefaultFactory) attachPublisher(config Config, res *BackendResult) {
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
			res.Cleanup = chain(res.Cleanup, client.Close)
		}
	}

	if res.Publisher != nil || f.observer != nil {
		res.Stores.Transactions = adapters.NewPublishingTransactions(res.Stores.Transactions, res.Publisher, f.observer)
	}
}

func chain(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		for i := len(fns) - 1; i >= 0; i-- {
			if fns[i] == nil {
				continue
			}
			if err := fns[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

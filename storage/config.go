package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/leviska/tagsearch/format"
	"github.com/leviska/tagsearch/internal/options"
)

// Config holds the settings a Storage is built with. New takes DataDir,
// MaxActiveSize and MaxBlockSize as arguments and rejects zero values for
// them; the With* options set the remaining fields.
type Config struct {
	// DataDir is where disk-resident block files live. Created via
	// os.MkdirAll if missing.
	DataDir string
	// MaxActiveSize is the (document, tag) pair count at which the active
	// block is rotated into the in-memory compaction queue.
	MaxActiveSize uint64
	// MaxBlockSize is the size threshold past which a merged in-memory
	// block is flushed to disk instead of merged further.
	MaxBlockSize uint64

	compression format.CompressionType
	logger      *zap.Logger
	concurrency int
}

// Option configures a Config passed to New.
type Option = options.Option[*Config]

// WithCompression sets the codec applied to every section of every block
// written to disk. Defaults to format.CompressionNone.
func WithCompression(c format.CompressionType) Option {
	return options.NoError(func(cfg *Config) {
		cfg.compression = c
	})
}

// WithLogger sets the logger Storage reports background failures through.
// Defaults to zap.NewNop(), so a Storage stays silent unless a caller opts
// in, matching how a library dependency shouldn't impose logging output on
// its host application.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(cfg *Config) {
		cfg.logger = logger
	})
}

// WithWorkerConcurrency sets how many goroutines service the background
// save/compaction queue. Defaults to 1, matching a single dedicated
// background worker; values above 1 only change how Stop waits for
// in-flight work to drain, not the order blocks are flushed in (rotation
// and compaction themselves are still serialized by the tier locks).
func WithWorkerConcurrency(n int) Option {
	return options.NoError(func(cfg *Config) {
		cfg.concurrency = n
	})
}

func newConfig(dataDir string, maxActiveSize, maxBlockSize uint64, opts ...Option) (*Config, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("tagsearch: DataDir must not be empty")
	}
	if maxActiveSize == 0 {
		return nil, fmt.Errorf("tagsearch: MaxActiveSize must be positive")
	}
	if maxBlockSize == 0 {
		return nil, fmt.Errorf("tagsearch: MaxBlockSize must be positive")
	}

	cfg := &Config{
		DataDir:       dataDir,
		MaxActiveSize: maxActiveSize,
		MaxBlockSize:  maxBlockSize,
		compression:   format.CompressionNone,
		logger:        zap.NewNop(),
		concurrency:   1,
	}

	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.concurrency < 1 {
		return nil, fmt.Errorf("tagsearch: WorkerConcurrency must be positive, got %d", cfg.concurrency)
	}

	return cfg, nil
}

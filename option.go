package embracedb

import "embracedb/internal/base"

// Options configures engine behavior.
type Options struct {
	logger             Logger
	maxDegree          int
	checkpointInterval uint64
	cacheSize          int
	walBufferSize      int
}

func defaultOptions() Options {
	return Options{
		logger:             DiscardLogger{},
		maxDegree:          base.DefaultMaxDegree,
		checkpointInterval: 0, // auto-checkpointing off
		cacheSize:          1024,
		walBufferSize:      0, // wal.DefaultBufferSize
	}
}

// Option configures the engine using the functional options pattern.
type Option func(*Options)

// WithLogger installs a structured logger for lifecycle events and
// tolerated failures. The default discards everything.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		opts.logger = l
	}
}

// WithMaxDegree sets the tree's branching factor. A node splits when its
// key count reaches the degree. Values below 3 are rejected by Open.
//
//goland:noinspection GoUnusedExportedFunction
func WithMaxDegree(degree int) Option {
	return func(opts *Options) {
		opts.maxDegree = degree
	}
}

// WithCheckpointInterval enables auto-checkpointing every n mutations.
// Zero disables it.
//
//goland:noinspection GoUnusedExportedFunction
func WithCheckpointInterval(n uint64) Option {
	return func(opts *Options) {
		opts.checkpointInterval = n
	}
}

// WithCacheSize sets the capacity of the read-path value cache in
// entries. Zero disables the cache.
//
//goland:noinspection GoUnusedExportedFunction
func WithCacheSize(entries int) Option {
	return func(opts *Options) {
		opts.cacheSize = entries
	}
}

// WithWALBufferSize sets the WAL write buffer capacity in bytes.
//
//goland:noinspection GoUnusedExportedFunction
func WithWALBufferSize(size int) Option {
	return func(opts *Options) {
		opts.walBufferSize = size
	}
}

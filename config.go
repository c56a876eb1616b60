package dheap

import "log"

// Config holds the tunables for a Heap, set at construction time with
// Option values passed to NewHeap.
type Config struct {
	// CollectBeforeExpand, when true, makes the heap run a full Collect
	// before allocating a new Page whenever the existing pages cannot
	// satisfy a request, trading allocation latency for a smaller
	// footprint. Default false, matching the specification's default of
	// only expanding.
	CollectBeforeExpand bool

	// DebugArithmetic enables the bounds checking described for Handle
	// pointer arithmetic: every Add/Sub/Diff verifies the result still
	// falls within the source handle's allocation. Default true.
	DebugArithmetic bool

	// Logger, if non-nil, receives one line per Collect call summarizing
	// pages scanned and allocations freed, plus out-of-memory notices.
	Logger *log.Logger

	// MinPageSize is the smallest total size, in bytes, a new Page will
	// request from its backing allocator. Zero means use
	// gpage.MinPageSize.
	MinPageSize uintptr

	// PageGrowthFactor multiplies the footprint a new page is sized for,
	// so a page created to satisfy one allocation has headroom for a few
	// more of similar size before the heap must expand again. Zero means
	// use gpage.DefaultGrowthFactor.
	PageGrowthFactor float64
}

// Option configures a Config, following the usual functional-options shape.
type Option func(*Config)

// WithCollectBeforeExpand sets Config.CollectBeforeExpand.
func WithCollectBeforeExpand(v bool) Option {
	return func(c *Config) { c.CollectBeforeExpand = v }
}

// WithDebugArithmetic sets Config.DebugArithmetic.
func WithDebugArithmetic(v bool) Option {
	return func(c *Config) { c.DebugArithmetic = v }
}

// WithLogger sets Config.Logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMinPageSize sets Config.MinPageSize.
func WithMinPageSize(n uintptr) Option {
	return func(c *Config) { c.MinPageSize = n }
}

// WithPageGrowthFactor sets Config.PageGrowthFactor.
func WithPageGrowthFactor(f float64) Option {
	return func(c *Config) { c.PageGrowthFactor = f }
}

func defaultConfig() Config {
	return Config{
		CollectBeforeExpand: false,
		DebugArithmetic:     true,
	}
}

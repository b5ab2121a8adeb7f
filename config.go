package tinyvec

// Default tunable constants. These are not environment-configurable on
// purpose: the core has no environment surface beyond the file path.
const (
	// DefaultTargetBufferBytes is the target size, in bytes, of the
	// record-buffer used while scanning the vector file.
	DefaultTargetBufferBytes = 4 << 20 // ~4 MiB

	// MinBufferRecords is the floor on how few records a scan buffer may
	// hold, regardless of record size.
	MinBufferRecords = 512

	// MaxBufferRecords is the ceiling on how many records a scan buffer
	// may hold, regardless of record size.
	MaxBufferRecords = 8192

	// DeleteBatchSize is the number of IDs batched per metadata-store
	// DELETE statement.
	DeleteBatchSize = 500

	// BulkFetchINCap is the maximum number of IDs placed in a single
	// bulk-fetch IN clause, to respect SQLite's default bound parameter
	// limit.
	BulkFetchINCap = 999
)

// Config holds the construction-time configuration for a DB. Use
// DefaultConfig and the With* options rather than constructing Config
// directly, so new fields default sanely.
type Config struct {
	// Dimensions is the vector dimension to use when opening a brand-new
	// file. 0 means "infer from the stored header, or from the first
	// insert." Ignored when a connection for the path is already
	// registered.
	Dimensions int

	Logger Logger

	TargetBufferBytes int
	MinBufferRecords  int
	MaxBufferRecords  int
	DeleteBatchSize   int
	BulkFetchINCap    int
}

// DefaultConfig returns a Config with every tunable set to the named
// constants and a NopLogger.
func DefaultConfig() Config {
	return Config{
		Logger:            NopLogger(),
		TargetBufferBytes: DefaultTargetBufferBytes,
		MinBufferRecords:  MinBufferRecords,
		MaxBufferRecords:  MaxBufferRecords,
		DeleteBatchSize:   DeleteBatchSize,
		BulkFetchINCap:    BulkFetchINCap,
	}
}

// Option configures a DB at Open time.
type Option func(*Config)

// WithDimensions sets the dimension to use when creating a brand-new file.
func WithDimensions(d int) Option {
	return func(c *Config) { c.Dimensions = d }
}

// WithLogger overrides the default NopLogger.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithScanBuffer overrides the record-buffer sizing tunables.
func WithScanBuffer(targetBytes, minRecords, maxRecords int) Option {
	return func(c *Config) {
		if targetBytes > 0 {
			c.TargetBufferBytes = targetBytes
		}
		if minRecords > 0 {
			c.MinBufferRecords = minRecords
		}
		if maxRecords > 0 {
			c.MaxBufferRecords = maxRecords
		}
	}
}

// WithDeleteBatchSize overrides the metadata-store delete batch size.
func WithDeleteBatchSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.DeleteBatchSize = n
		}
	}
}

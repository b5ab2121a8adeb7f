// Package tinyvec is an embeddable, on-disk vector database: fixed
// dimension float32 vectors with JSON metadata payloads, searched by
// brute-force cosine similarity with an optional structured metadata
// filter.
package tinyvec

import "context"

// DB is the handle a caller interacts with. It is a thin wrapper around a
// registry-managed Connection: opening the same path twice within one
// process returns handles sharing the same underlying Connection.
type DB struct {
	conn *Connection
	path string
}

// Open returns a DB for path, creating the backing vector file and
// metadata store if they do not yet exist. If a connection for this path
// is already registered in the process, it is reused and opts affecting
// dimension are ignored (the registered connection's dimension wins).
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Dimensions < 0 {
		return nil, wrapError("open", ErrInvalidArgument)
	}

	conn, err := globalRegistry.openConnection(ctx, path, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, path: path}, nil
}

// Stats returns {N, D} for the underlying vector file.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	return db.conn.Stats(ctx)
}

// Insert adds each (vector, payload) pair, skipping any whose vector is
// empty or of the wrong dimension. Returns the number actually inserted.
func (db *DB) Insert(ctx context.Context, records []Record) (int, error) {
	return db.conn.Insert(ctx, records)
}

// Search returns the K nearest neighbors of query by cosine similarity,
// ordered strictly descending by similarity.
func (db *DB) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	return db.conn.Search(ctx, query, k)
}

// SearchWithFilter is Search restricted to vectors whose metadata matches
// predicateDoc, a JSON-encoded MongoDB-shaped filter document.
func (db *DB) SearchWithFilter(ctx context.Context, query []float32, k int, predicateDoc []byte) ([]SearchResult, error) {
	return db.conn.SearchWithFilter(ctx, query, k, predicateDoc)
}

// DeleteByIDs removes the given IDs. Returns the number actually removed.
func (db *DB) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	return db.conn.DeleteByIDs(ctx, ids)
}

// DeleteByFilter removes every vector whose metadata matches
// predicateDoc. Returns the number removed.
func (db *DB) DeleteByFilter(ctx context.Context, predicateDoc []byte) (int, error) {
	return db.conn.DeleteByFilter(ctx, predicateDoc)
}

// UpdateByIDs overwrites the payload and vector for each item. Returns the
// number of items successfully updated.
func (db *DB) UpdateByIDs(ctx context.Context, items []UpdateItem) (int, error) {
	return db.conn.UpdateByIDs(ctx, items)
}

// Paginate returns up to limit records starting at skip, in file order.
func (db *DB) Paginate(ctx context.Context, skip, limit int) ([]PageItem, error) {
	return db.conn.Paginate(ctx, skip, limit)
}

// RefreshConnection reopens the vector file handle in place, picking up
// changes made to the underlying file by another process or a prior
// handle. Returns false if the reopen failed.
func (db *DB) RefreshConnection() bool {
	return db.conn.Refresh() == nil
}

// Close releases the underlying file handles and removes the connection
// from the process-wide registry so a subsequent Open for this path
// starts fresh.
func (db *DB) Close() error {
	globalRegistry.remove(db.path)
	return db.conn.Close()
}

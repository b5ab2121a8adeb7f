package tinyvec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/tinyvec/internal/kernel"
	"github.com/liliang-cn/tinyvec/internal/metastore"
	"github.com/liliang-cn/tinyvec/internal/predicate"
	"github.com/liliang-cn/tinyvec/internal/topk"
	"github.com/liliang-cn/tinyvec/internal/vecfile"
)

// Connection is a live handle pair (vector file + metadata store)
// registered against one path. All mutating operations take the write
// lock; search and paginate take the read lock, so two reads may proceed
// concurrently but never alongside a write.
type Connection struct {
	path string
	cfg  Config

	mu     sync.RWMutex
	vf     *vecfile.File
	ms     *metastore.Store
	dim    int  // 0 until established by header or first insert
	closed bool // true once Close has released both handles
}

func newConnection(ctx context.Context, path string, cfg Config) (*Connection, error) {
	vf, err := vecfile.Open(path)
	if err != nil {
		return nil, wrapError("open", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	ms, err := metastore.Open(ctx, path+".metadata.db")
	if err != nil {
		_ = vf.Close()
		return nil, wrapError("open", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}

	dim := int(vf.Header().D)
	if dim == 0 && cfg.Dimensions > 0 {
		if err := vf.EstablishDimension(uint32(cfg.Dimensions)); err != nil {
			_ = vf.Close()
			_ = ms.Close()
			return nil, wrapError("open", fmt.Errorf("%w: %v", ErrIOFailure, err))
		}
		dim = cfg.Dimensions
	}

	return &Connection{path: path, cfg: cfg, vf: vf, ms: ms, dim: dim}, nil
}

func (c *Connection) recSize() int { return vecfile.RecSize(c.dim) }

// log returns a Logger pre-scoped to this connection's path and the calling
// operation's name, so every line an operation emits is traceable back to
// which connection and which call produced it without each call site having
// to repeat that context itself.
func (c *Connection) log(op string) Logger {
	if c.cfg.Logger == nil {
		return NopLogger()
	}
	return c.cfg.Logger.With("path", c.path, "op", op)
}

// Stats returns the current {N, D} from the vector file header, plus the
// on-disk byte size of both the vector file and the metadata database.
func (c *Connection) Stats(_ context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Stats{}, wrapError("stats", ErrClosed)
	}

	h := c.vf.Header()
	vecBytes, err := c.vf.Size()
	if err != nil {
		return Stats{}, wrapError("stats", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	metaBytes, err := c.ms.FileSize()
	if err != nil {
		return Stats{}, wrapError("stats", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}

	return Stats{N: h.N, D: h.D, VectorFileBytes: vecBytes, MetadataFileBytes: metaBytes}, nil
}

// Insert stages and writes each valid (vector, payload) pair, establishing
// the file's dimension from the first valid record if it is not yet set.
// Records whose vector is empty or whose length disagrees with the
// established dimension are skipped rather than failing the whole call.
func (c *Connection) Insert(ctx context.Context, records []Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, wrapError("insert", ErrClosed)
	}

	d := c.dim
	type staged struct {
		vec []float32
	}
	var valid []staged
	var payloads [][]byte

	for _, r := range records {
		if len(r.Vector) == 0 {
			continue
		}
		if d == 0 {
			d = len(r.Vector)
		}
		if len(r.Vector) != d {
			continue
		}
		normalized := kernel.GetNormalized(r.Vector)
		valid = append(valid, staged{vec: normalized})
		payloads = append(payloads, r.Payload)
	}

	if len(valid) == 0 {
		return 0, nil
	}

	ids, errs, err := c.ms.InsertBatch(ctx, payloads)
	if err != nil {
		return 0, wrapError("insert", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}

	recSize := vecfile.RecSize(d)
	buf := make([]byte, 0, len(valid)*recSize)
	inserted := 0
	for i, v := range valid {
		if errs[i] != nil {
			c.log("insert").Warn("metadata row failed, skipping vector", "err", errs[i])
			continue
		}
		rec := make([]byte, recSize)
		vecfile.EncodeRecord(int32(ids[i]), v.vec, rec)
		buf = append(buf, rec...)
		inserted++
	}

	if inserted == 0 {
		return 0, nil
	}

	if err := c.vf.AppendRecords(buf); err != nil {
		return 0, wrapError("insert", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}

	if c.dim == 0 {
		c.dim = d
		if err := c.vf.EstablishDimension(uint32(d)); err != nil {
			return inserted, wrapError("insert", fmt.Errorf("%w: %v", ErrIOFailure, err))
		}
	}

	newN := c.vf.Header().N + uint32(inserted)
	if err := c.vf.SetCount(newN); err != nil {
		return inserted, wrapError("insert", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}

	return inserted, nil
}

func (c *Connection) scanBufferRecords() int {
	return vecfile.BufferRecordCount(c.dim, c.cfg.TargetBufferBytes, c.cfg.MinBufferRecords, c.cfg.MaxBufferRecords)
}

// Search returns the K nearest neighbors of query by cosine similarity.
func (c *Connection) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	return c.searchFiltered(ctx, query, k, nil)
}

// SearchWithFilter restricts Search to vectors whose metadata matches the
// given predicate document (MongoDB-shaped, JSON-encoded).
func (c *Connection) SearchWithFilter(ctx context.Context, query []float32, k int, predicateDoc []byte) ([]SearchResult, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, wrapError("search_with_filter", ErrClosed)
	}
	clause := predicate.Translate("payload", predicateDoc)
	ids, err := c.ms.Filter(ctx, clause.SQL, clause.Args)
	c.mu.RUnlock()
	if err != nil {
		return nil, wrapError("search_with_filter", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}
	if len(ids) == 0 {
		return []SearchResult{}, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return c.searchFiltered(ctx, query, k, ids)
}

// allowed, if non-nil, is a sorted slice of IDs the scan restricts to.
func (c *Connection) searchFiltered(ctx context.Context, query []float32, k int, allowed []int64) ([]SearchResult, error) {
	if k <= 0 {
		return nil, wrapError("search", ErrInvalidArgument)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, wrapError("search", ErrClosed)
	}

	header := c.vf.Header()
	if header.N == 0 || header.D == 0 {
		return []SearchResult{}, nil
	}
	if len(query) != int(header.D) {
		return nil, wrapError("search", ErrDimensionMismatch)
	}

	qNorm := kernel.GetNormalized(query)
	sel := topk.New(k)
	pool := vecfile.NewBufferPool(c.recSize())
	bufRecords := c.scanBufferRecords()

	scanErr := c.vf.Scan(bufRecords, pool, func(records [][]byte) error {
		for _, rec := range records {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			id := vecfile.DecodeID(rec)
			if allowed != nil && !containsSorted(allowed, int64(id)) {
				continue
			}
			score := kernel.Dot(qNorm, vecfile.DecodeVector(rec, int(header.D)), int(header.D))
			sel.Offer(score, id)
		}
		return nil
	})
	if scanErr != nil {
		return nil, wrapError("search", fmt.Errorf("%w: %v", scanErrKind(scanErr), scanErr))
	}

	entries := sel.Drain()
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = int64(e.ID)
	}
	payloads, err := c.ms.BulkFetch(ctx, ids, c.cfg.BulkFetchINCap)
	if err != nil {
		return nil, wrapError("search", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}

	results := make([]SearchResult, len(entries))
	for i, e := range entries {
		results[i] = SearchResult{ID: int64(e.ID), Similarity: e.Score, Payload: payloads[i]}
	}
	return results, nil
}

func containsSorted(sorted []int64, v int64) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= v })
	return i < len(sorted) && sorted[i] == v
}

// scanErrKind picks the sentinel for an error returned by a vector-file
// scan: ErrCorruption when the file is shorter than its header declares,
// ErrIOFailure for any other failure.
func scanErrKind(err error) error {
	if errors.Is(err, vecfile.ErrCorrupt) {
		return ErrCorruption
	}
	return ErrIOFailure
}

// DeleteByIDs removes the vectors (and their metadata rows) for the given
// IDs: it rewrites the surviving records into a temporary file, then swaps
// that file in and deletes the metadata rows in parallel. Returns the number
// of vectors actually removed; an empty ID list is ErrInvalidArgument.
func (c *Connection) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, wrapError("delete_by_ids", ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, wrapError("delete_by_ids", ErrClosed)
	}

	drop := make([]int64, len(ids))
	copy(drop, ids)
	sort.Slice(drop, func(i, j int) bool { return drop[i] < drop[j] })

	header := c.vf.Header()
	if header.N == 0 {
		return 0, nil
	}

	tmpPath := c.path + ".temp"
	tmp, err := vecfile.Open(tmpPath)
	if err != nil {
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	if err := tmp.EstablishDimension(header.D); err != nil {
		_ = tmp.Close()
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}

	recSize := c.recSize()
	pool := vecfile.NewBufferPool(recSize)
	bufRecords := c.scanBufferRecords()

	kept := 0
	removed := 0
	var writeBuf []byte
	flushThreshold := bufRecords * recSize

	flush := func() error {
		if len(writeBuf) == 0 {
			return nil
		}
		if err := tmp.AppendRecords(writeBuf); err != nil {
			return err
		}
		writeBuf = writeBuf[:0]
		return nil
	}

	scanErr := c.vf.Scan(bufRecords, pool, func(records [][]byte) error {
		for _, rec := range records {
			id := int64(vecfile.DecodeID(rec))
			if containsSorted(drop, id) {
				removed++
				continue
			}
			writeBuf = append(writeBuf, rec...)
			kept++
			if len(writeBuf) >= flushThreshold {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if scanErr != nil {
		_ = tmp.Close()
		_ = removeFile(tmpPath)
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", scanErrKind(scanErr), scanErr))
	}
	if err := flush(); err != nil {
		_ = tmp.Close()
		_ = removeFile(tmpPath)
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	if err := tmp.SetCount(uint32(kept)); err != nil {
		_ = tmp.Close()
		_ = removeFile(tmpPath)
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	if err := tmp.Close(); err != nil {
		_ = removeFile(tmpPath)
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.vf.ReplaceWith(tmpPath)
	})
	g.Go(func() error {
		return c.ms.DeleteBatch(gctx, drop, c.cfg.DeleteBatchSize)
	})
	if err := g.Wait(); err != nil {
		return 0, wrapError("delete_by_ids", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}

	return removed, nil
}

// DeleteByFilter translates predicateDoc, materializes the matching IDs,
// and delegates to DeleteByIDs.
func (c *Connection) DeleteByFilter(ctx context.Context, predicateDoc []byte) (int, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return 0, wrapError("delete_by_filter", ErrClosed)
	}
	clause := predicate.Translate("payload", predicateDoc)
	ids, err := c.ms.Filter(ctx, clause.SQL, clause.Args)
	c.mu.RUnlock()
	if err != nil {
		return 0, wrapError("delete_by_filter", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return c.DeleteByIDs(ctx, ids)
}

// UpdateByIDs overwrites the payload and vector for each item, locating
// each vector record by a linear scan since the file is not indexed by
// ID. Returns the number of items successfully updated.
func (c *Connection) UpdateByIDs(ctx context.Context, items []UpdateItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, wrapError("update_by_ids", ErrClosed)
	}

	header := c.vf.Header()
	if header.D == 0 {
		return 0, wrapError("update_by_ids", ErrInvalidArgument)
	}

	byID := make(map[int64]UpdateItem, len(items))
	for _, it := range items {
		if len(it.Vector) != int(header.D) {
			continue
		}
		byID[it.ID] = it
	}
	if len(byID) == 0 {
		return 0, nil
	}

	for _, it := range byID {
		if err := c.ms.Update(ctx, it.ID, it.Payload); err != nil {
			return 0, wrapError("update_by_ids", fmt.Errorf("%w: %v", ErrStoreFailure, err))
		}
	}

	recSize := c.recSize()
	pool := vecfile.NewBufferPool(recSize)
	bufRecords := c.scanBufferRecords()

	updated := 0
	remaining := len(byID)
	var index int64
	scanErr := c.vf.Scan(bufRecords, pool, func(records [][]byte) error {
		for _, rec := range records {
			if remaining == 0 {
				index++
				continue
			}
			id := int64(vecfile.DecodeID(rec))
			if it, ok := byID[id]; ok {
				normalized := kernel.GetNormalized(it.Vector)
				out := make([]byte, recSize)
				vecfile.EncodeRecord(int32(id), normalized, out)
				if err := c.vf.OverwriteRecordAt(index, out); err != nil {
					return err
				}
				updated++
				remaining--
			}
			index++
		}
		return nil
	})
	if scanErr != nil {
		return updated, wrapError("update_by_ids", fmt.Errorf("%w: %v", scanErrKind(scanErr), scanErr))
	}
	return updated, nil
}

// Paginate returns up to limit records starting at skip, in file order
// (not similarity-sorted).
func (c *Connection) Paginate(ctx context.Context, skip, limit int) ([]PageItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, wrapError("paginate", ErrClosed)
	}

	header := c.vf.Header()
	if skip < 0 || skip >= int(header.N) || limit <= 0 {
		return []PageItem{}, nil
	}
	effLimit := limit
	if skip+effLimit > int(header.N) {
		effLimit = int(header.N) - skip
	}

	recs, err := c.vf.ReadRange(skip, effLimit)
	if err != nil {
		return nil, wrapError("paginate", fmt.Errorf("%w: %v", ErrCorruption, err))
	}

	ids := make([]int64, len(recs))
	vecs := make([][]float32, len(recs))
	for i, rec := range recs {
		ids[i] = int64(vecfile.DecodeID(rec))
		vecs[i] = vecfile.DecodeVector(rec, int(header.D))
	}

	payloads, err := c.ms.BulkFetch(ctx, ids, c.cfg.BulkFetchINCap)
	if err != nil {
		return nil, wrapError("paginate", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}

	out := make([]PageItem, len(recs))
	for i := range recs {
		out[i] = PageItem{ID: ids[i], Vector: vecs[i], Payload: payloads[i]}
	}
	return out, nil
}

// Refresh reopens the vector file handle in place, picking up external
// changes to the underlying file without re-registering the connection.
func (c *Connection) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return wrapError("refresh_connection", ErrClosed)
	}

	if err := c.vf.Close(); err != nil {
		return wrapError("refresh_connection", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	vf, err := vecfile.Open(c.path)
	if err != nil {
		return wrapError("refresh_connection", fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	c.vf = vf
	c.dim = int(vf.Header().D)
	return nil
}

// Close releases both underlying file handles. It does not touch the
// registry; DB.Close removes the registry entry before calling it. Close is
// idempotent: calling it again returns nil, and calling any other operation
// afterward returns ErrClosed instead of operating on released handles.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	err1 := c.vf.Close()
	err2 := c.ms.Close()
	if err1 != nil {
		return wrapError("close", fmt.Errorf("%w: %v", ErrIOFailure, err1))
	}
	if err2 != nil {
		return wrapError("close", fmt.Errorf("%w: %v", ErrStoreFailure, err2))
	}
	return nil
}

func removeFile(path string) error {
	return os.Remove(path)
}

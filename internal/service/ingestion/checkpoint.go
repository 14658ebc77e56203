package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"time"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/storage"
)

// Checkpoint layout beneath a job's checkpoint path:
//
//	metadata      stream identity, written once
//	offsets/<n>   files of batch n, written before the batch runs
//	commits/<n>   written after batch n is committed to the table
const (
	checkpointMetadata = "metadata"
	offsetsDir         = "offsets"
	commitsDir         = "commits"
)

// StreamMetadata identifies the stream that owns a checkpoint.
type StreamMetadata struct {
	ID        string    `json:"id"`
	Job       string    `json:"job"`
	Table     string    `json:"table"`
	CreatedAt time.Time `json:"created_at"`
}

// Offset records the files a batch reads.
type Offset struct {
	BatchID   int64     `json:"batch_id"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"created_at"`
}

// Commit records a batch that reached the table.
type Commit struct {
	BatchID      int64     `json:"batch_id"`
	RowsAppended int64     `json:"rows_appended"`
	CommittedAt  time.Time `json:"committed_at"`
}

// CheckpointState is the decoded progress of a stream.
type CheckpointState struct {
	Metadata  StreamMetadata
	Committed map[string]bool // source files already in the table
	NextBatch int64
	Pending   *Offset // the last batch, when its commit is missing
}

// Checkpoint persists stream progress in an object store.
type Checkpoint struct {
	store storage.ObjectStore
	root  storage.Location
}

// NewCheckpoint opens the checkpoint rooted at rawURL.
func NewCheckpoint(store storage.ObjectStore, rawURL string) (*Checkpoint, error) {
	loc, err := storage.ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{store: store, root: loc}, nil
}

// Load reads the checkpoint, creating its metadata on first use.
func (c *Checkpoint) Load(ctx context.Context, job, table string) (*CheckpointState, error) {
	meta, err := c.metadata(ctx, job, table)
	if err != nil {
		return nil, err
	}

	offsets, err := c.batchIDs(ctx, offsetsDir)
	if err != nil {
		return nil, err
	}
	commits, err := c.batchIDs(ctx, commitsDir)
	if err != nil {
		return nil, err
	}
	committed := make(map[int64]bool, len(commits))
	for _, id := range commits {
		committed[id] = true
	}

	state := &CheckpointState{Metadata: *meta, Committed: make(map[string]bool)}
	for i, id := range offsets {
		off, err := c.readOffset(ctx, id)
		if err != nil {
			return nil, err
		}
		if !committed[id] {
			if i != len(offsets)-1 {
				return nil, fmt.Errorf("checkpoint %s: batch %d has no commit but later batches exist", c.root, id)
			}
			state.Pending = off
			continue
		}
		for _, f := range off.Files {
			state.Committed[f] = true
		}
	}
	if n := len(offsets); n > 0 {
		state.NextBatch = offsets[n-1] + 1
	}
	return state, nil
}

// WriteOffset records the intent to process files as batch id.
func (c *Checkpoint) WriteOffset(ctx context.Context, id int64, files []string) (*Offset, error) {
	off := &Offset{BatchID: id, Files: files, CreatedAt: time.Now().UTC()}
	if err := c.writeJSON(ctx, c.batchURL(offsetsDir, id), off); err != nil {
		return nil, err
	}
	return off, nil
}

// WriteCommit marks batch id as committed.
func (c *Checkpoint) WriteCommit(ctx context.Context, id, rows int64) error {
	return c.writeJSON(ctx, c.batchURL(commitsDir, id), Commit{BatchID: id, RowsAppended: rows, CommittedAt: time.Now().UTC()})
}

func (c *Checkpoint) metadata(ctx context.Context, job, table string) (*StreamMetadata, error) {
	url := c.root.Child(checkpointMetadata).String()
	var meta StreamMetadata
	err := c.readJSON(ctx, url, &meta)
	if err == nil {
		if meta.Table != "" && meta.Table != table {
			return nil, domain.ErrConflict("checkpoint %s belongs to table %s, not %s", c.root, meta.Table, table)
		}
		return &meta, nil
	}
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}
	meta = StreamMetadata{ID: domain.NewID(), Job: job, Table: table, CreatedAt: time.Now().UTC()}
	if err := c.writeJSON(ctx, url, meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Checkpoint) readOffset(ctx context.Context, id int64) (*Offset, error) {
	var off Offset
	if err := c.readJSON(ctx, c.batchURL(offsetsDir, id), &off); err != nil {
		return nil, err
	}
	return &off, nil
}

// batchIDs lists the numeric entries of dir in ascending order.
func (c *Checkpoint) batchIDs(ctx context.Context, dir string) ([]int64, error) {
	objs, err := c.store.List(ctx, c.root.Child(dir).String())
	if err != nil {
		return nil, fmt.Errorf("list checkpoint %s: %w", dir, err)
	}
	var ids []int64
	for _, o := range objs {
		id, err := strconv.ParseInt(path.Base(o.URL), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (c *Checkpoint) batchURL(dir string, id int64) string {
	return c.root.Child(dir).Child(strconv.FormatInt(id, 10)).String()
}

func (c *Checkpoint) readJSON(ctx context.Context, url string, v any) error {
	data, err := c.store.Read(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Checkpoint) writeJSON(ctx context.Context, url string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", url, err)
	}
	return c.store.Write(ctx, url, data)
}

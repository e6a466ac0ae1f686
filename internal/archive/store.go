package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const codecZstd = "zstd"

// ErrNotFound is returned by Get for an absent dataset.
var ErrNotFound = errors.New("dataset not found")

// Info describes a stored dataset without its payload.
type Info struct {
	Path        string
	DType       DType
	Shape       []int
	Codec       string
	RawBytes    int64
	StoredBytes int64
}

// Store is a sqlite-backed hierarchical dataset store.
type Store struct {
	db   *sql.DB
	path string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// OpenStore opens or creates the archive at path. level is a zstd level in
// [1, 22].
func OpenStore(path string, level int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	// One connection keeps checkpoints and transactions on the same handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	return newStore(db, path, level)
}

// OpenReadOnly opens an existing archive without modifying it.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return newStore(db, path, 1)
}

func newStore(db *sql.DB, path string, level int) (*Store, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Store{db: db, path: path, enc: enc, dec: dec}, nil
}

// Path returns the archive file.
func (s *Store) Path() string { return s.path }

// Close releases the database and codecs. Calling Close again is a no-op.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_ = s.enc.Close()
	s.dec.Close()
	err := s.db.Close()
	s.db = nil
	return err
}

// Tx is a write transaction over the store.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// Update runs fn in one transaction. fn's error rolls back every change.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// Put creates or replaces a dataset.
func (t *Tx) Put(ctx context.Context, d Dataset) error {
	if err := d.validate(); err != nil {
		return err
	}
	shape, err := json.Marshal(d.Shape)
	if err != nil {
		return fmt.Errorf("encode shape of %s: %w", d.Path, err)
	}
	raw := d.raw()
	compressed := t.store.enc.EncodeAll(raw, nil)
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO datasets (path, parent, dtype, shape, codec, raw_bytes, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET parent = excluded.parent, dtype = excluded.dtype,
		   shape = excluded.shape, codec = excluded.codec, raw_bytes = excluded.raw_bytes, data = excluded.data`,
		d.Path, parentOf(d.Path), string(d.DType), string(shape), codecZstd, len(raw), compressed,
	)
	if err != nil {
		return fmt.Errorf("put dataset %s: %w", d.Path, err)
	}
	return nil
}

// Delete removes the dataset at group and every dataset beneath it. It
// returns the number of datasets removed.
func (t *Tx) Delete(ctx context.Context, group string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM datasets WHERE path = ? OR substr(path, 1, length(?) + 1) = ? || '/'`,
		group, group, group,
	)
	if err != nil {
		return 0, fmt.Errorf("delete group %s: %w", group, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteRootPrefix removes root-level datasets whose name starts with prefix.
func (t *Tx) DeleteRootPrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM datasets WHERE parent = '' AND length(path) > length(?) AND substr(path, 1, length(?)) = ?`,
		prefix, prefix, prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("delete legacy %s*: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SetMeta records an archive-level attribute.
func (t *Tx) SetMeta(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// Put stores one dataset in its own transaction.
func (s *Store) Put(ctx context.Context, d Dataset) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.Put(ctx, d) })
}

// Delete removes a group subtree in its own transaction.
func (s *Store) Delete(ctx context.Context, group string) (int64, error) {
	var n int64
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Delete(ctx, group)
		return err
	})
	return n, err
}

// SetMeta records an attribute in its own transaction.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.SetMeta(ctx, key, value) })
}

// Meta returns every archive-level attribute.
func (s *Store) Meta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Get loads and decompresses one dataset.
func (s *Store) Get(ctx context.Context, path string) (Dataset, error) {
	var (
		dtype, shape, codec string
		blob                []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dtype, shape, codec, data FROM datasets WHERE path = ?`, path,
	).Scan(&dtype, &shape, &codec, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("get dataset %s: %w", path, err)
	}

	d := Dataset{Path: path, DType: DType(dtype)}
	if err := json.Unmarshal([]byte(shape), &d.Shape); err != nil {
		return Dataset{}, fmt.Errorf("decode shape of %s: %w", path, err)
	}
	if codec != codecZstd {
		return Dataset{}, fmt.Errorf("dataset %s uses unsupported codec %q", path, codec)
	}
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return Dataset{}, fmt.Errorf("decompress %s: %w", path, err)
	}
	if err := decodeRaw(&d, raw); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

// Payload returns the stored compressed bytes of a dataset.
func (s *Store) Payload(ctx context.Context, path string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM datasets WHERE path = ?`, path).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", path, err)
	}
	return blob, nil
}

// List returns datasets whose path equals prefix or lies beneath it, sorted
// by path. An empty prefix lists everything.
func (s *Store) List(ctx context.Context, prefix string) ([]Info, error) {
	query := `SELECT path, dtype, shape, codec, raw_bytes, length(data) FROM datasets`
	var args []any
	if prefix != "" {
		query += ` WHERE path = ? OR substr(path, 1, length(?) + 1) = ? || '/'`
		args = append(args, prefix, prefix, prefix)
	}
	query += ` ORDER BY path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			info         Info
			dtype, shape string
		)
		if err := rows.Scan(&info.Path, &dtype, &shape, &info.Codec, &info.RawBytes, &info.StoredBytes); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		info.DType = DType(dtype)
		if err := json.Unmarshal([]byte(shape), &info.Shape); err != nil {
			return nil, fmt.Errorf("decode shape of %s: %w", info.Path, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *Store) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint archive: %w", err)
	}
	return nil
}

// Seal checkpoints and switches the file back to a rollback journal so the
// archive is a single self-contained file that read-only openers can use.
func (s *Store) Seal(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("seal archive: %w", err)
	}
	return nil
}

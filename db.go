package microanim

import (
	"crypto/sha1"
	"database/sql"
	"fmt"

	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/bitmap"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DB stores compressed animations along with the frames they were
// compressed from, keyed by the SHA-1 of their source.
type DB struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Record is a single stored animation.
type Record struct {
	ID     int64
	SHA1   string
	Name   string
	Width  int
	Height int
	Frames int
	Delta  bool
	// Size is the length of Data, which List doesn't load
	Size int
	Data []byte
}

// NewDB opens or creates the database in file.
func NewDB(file string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS animation (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL, name TEXT NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, frames INTEGER NOT NULL, delta INTEGER NOT NULL, source BLOB NOT NULL, data BLOB NOT NULL, UNIQUE(sha1, delta))"); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}

	return &DB{
		db:  db,
		enc: enc,
		dec: dec,
	}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	db.dec.Close()
	if err := db.enc.Close(); err != nil {
		db.db.Close()
		return err
	}
	return db.db.Close()
}

// SHA1 returns the key used to store an animation compressed from b.
func SHA1(b []byte) string {
	return fmt.Sprintf("%X", sha1.Sum(b))
}

// Add stores the result of compressing a, replacing any existing record
// with the same key, and returns its ID.
func (db *DB) Add(sha, name string, a *animation.Animation, r *animation.Result) (int64, error) {
	packed := make([]byte, 0, a.PackedSize())
	for _, f := range a.Frames {
		packed = append(packed, f.Pack()...)
	}
	source := db.enc.EncodeAll(packed, nil)

	// Concurrent workers can race to store the same key
	if _, err := db.db.Exec("INSERT INTO animation (sha1, name, width, height, frames, delta, source, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (sha1, delta) DO UPDATE SET name = excluded.name, width = excluded.width, height = excluded.height, frames = excluded.frames, source = excluded.source, data = excluded.data", sha, name, a.Width, a.Height, len(a.Frames), r.Delta, source, r.Data); err != nil {
		return 0, err
	}

	var id int64
	if err := db.db.QueryRow("SELECT id FROM animation WHERE sha1 = ? AND delta = ?", sha, r.Delta).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// FindBySHA1 returns the stored animation with the given key, or nil if
// there isn't one.
func (db *DB) FindBySHA1(sha string, delta bool) (*Record, error) {
	var r Record
	switch err := db.db.QueryRow("SELECT id, sha1, name, width, height, frames, delta, data FROM animation WHERE sha1 = ? AND delta = ?", sha, delta).Scan(&r.ID, &r.SHA1, &r.Name, &r.Width, &r.Height, &r.Frames, &r.Delta, &r.Data); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		r.Size = len(r.Data)
		return &r, nil
	default:
		return nil, err
	}
}

// List returns every stored animation ordered by name. The encoded data is
// not loaded.
func (db *DB) List() ([]Record, error) {
	rows, err := db.db.Query("SELECT id, sha1, name, width, height, frames, delta, length(data) FROM animation ORDER BY name, delta")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SHA1, &r.Name, &r.Width, &r.Height, &r.Frames, &r.Delta, &r.Size); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Load returns the stored animation with the given ID and the frames it was
// compressed from. The stored data is verified against the frames.
func (db *DB) Load(id int64) (*Record, *animation.Animation, error) {
	var r Record
	var source []byte
	if err := db.db.QueryRow("SELECT id, sha1, name, width, height, frames, delta, source, data FROM animation WHERE id = ?", id).Scan(&r.ID, &r.SHA1, &r.Name, &r.Width, &r.Height, &r.Frames, &r.Delta, &source, &r.Data); err != nil {
		return nil, nil, err
	}
	r.Size = len(r.Data)

	packed, err := db.dec.DecodeAll(source, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "animation %d", id)
	}

	a, err := animation.New(r.Width, r.Height)
	if err != nil {
		return nil, nil, err
	}
	size := bitmap.PackedSize(r.Width, r.Height)
	if len(packed) != size*r.Frames {
		return nil, nil, errors.Errorf("animation %d: source is %d bytes, want %d", id, len(packed), size*r.Frames)
	}
	for i := 0; i < r.Frames; i++ {
		if err := a.AddPacked(packed[i*size : (i+1)*size]); err != nil {
			return nil, nil, err
		}
	}

	if err := animation.Verify(a, r.Data); err != nil {
		return nil, nil, errors.Wrapf(err, "animation %d", id)
	}

	return &r, a, nil
}

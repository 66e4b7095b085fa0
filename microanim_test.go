package microanim

import (
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/bodgit/microanim/animation"
	"github.com/bodgit/microanim/image"
	"github.com/bodgit/microanim/source"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spinner = `#define FRAME_WIDTH (16)
#define FRAME_HEIGHT (4)

const byte PROGMEM frames[][8] = {
  {0x00, 0x00, 0x01, 0x80, 0x01, 0x80, 0x00, 0x00},
  {0x00, 0x00, 0x03, 0xc0, 0x03, 0xc0, 0x00, 0x00},
  {0x00, 0x00, 0x07, 0xe0, 0x07, 0xe0, 0x00, 0x00},
  {0xaa, 0x55, 0x07, 0xe0, 0x07, 0xe0, 0x55, 0xaa},
};
`

func newTestDB(t *testing.T) *DB {
	dir, err := ioutil.TempDir("", "microanim")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestCompressSource(t *testing.T) {
	var log bytes.Buffer
	c := New(nil, DefaultConfig(), zerolog.New(&log))

	r, err := c.CompressSource("spinner", []byte(spinner))
	require.NoError(t, err)
	assert.Len(t, r.Frames, 4)
	assert.Contains(t, log.String(), `"message":"compressed animation"`)

	a, err := animation.Decode(r.Data)
	require.NoError(t, err)
	expected, err := source.Parse([]byte(spinner))
	require.NoError(t, err)
	for i := range expected.Frames {
		assert.True(t, expected.Frames[i].Equal(a.Frames[i]))
	}

	_, err = c.CompressSource("broken", []byte("#define FRAME_WIDTH (8)"))
	assert.ErrorIs(t, err, source.ErrNoHeight)
}

func TestCompressImage(t *testing.T) {
	a, err := source.Parse([]byte(spinner))
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, image.Encode(&b, a, image.DefaultDelay))

	c := New(nil, DefaultConfig(), zerolog.Nop())
	r, err := c.CompressImage("spinner.gif", &b, image.Options{})
	require.NoError(t, err)
	assert.Len(t, r.Frames, 4)
	assert.Equal(t, 16, r.Width)
	assert.Equal(t, 4, r.Height)
}

func TestDB(t *testing.T) {
	db := newTestDB(t)
	c := New(db, DefaultConfig(), zerolog.Nop())

	r, err := c.CompressSource("spinner", []byte(spinner))
	require.NoError(t, err)

	rec, err := db.FindBySHA1(SHA1([]byte(spinner)), true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "spinner", rec.Name)
	assert.Equal(t, r.Data, rec.Data)

	missing, err := db.FindBySHA1(SHA1([]byte(spinner)), false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Second time round comes from the cache
	cached, err := c.CompressSource("spinner", []byte(spinner))
	require.NoError(t, err)
	assert.Equal(t, r.Data, cached.Data)

	records, err := db.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].Frames)
	assert.Equal(t, len(r.Data), records[0].Size)
	assert.Nil(t, records[0].Data)

	loaded, a, err := db.Load(records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, r.Data, loaded.Data)
	assert.Equal(t, len(r.Data), loaded.Size)
	assert.Len(t, a.Frames, 4)
}

func TestScan(t *testing.T) {
	dir, err := ioutil.TempDir("", "microanim")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "spinner.h"), []byte(spinner), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "sub", "other.h"), []byte(spinner), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, ".hidden", "skipped.h"), []byte(spinner), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "config.h"), []byte("#define LED 13\n"), 0644))

	c := New(newTestDB(t), DefaultConfig(), zerolog.Nop())
	require.NoError(t, c.Scan(dir))

	for _, file := range []string{"spinner.ino", filepath.Join("sub", "other.ino")} {
		b, err := ioutil.ReadFile(filepath.Join(dir, file))
		require.NoError(t, err)
		assert.Contains(t, string(b), "MicroAnimation animation(animationData")
	}
	for _, file := range []string{filepath.Join(".hidden", "skipped.ino"), "config.ino"} {
		_, err := os.Stat(filepath.Join(dir, file))
		assert.True(t, os.IsNotExist(err), file)
	}

	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "broken.h"), []byte("#define FRAME_WIDTH (8)\n"), 0644))
	err = c.Scan(dir)
	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, filepath.Join(dir, "broken.h"), fe.File)
}

func TestCompressImageStore(t *testing.T) {
	a, err := source.Parse([]byte(spinner))
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, image.Encode(&b, a, image.DefaultDelay))
	gif := b.Bytes()

	db := newTestDB(t)
	c := New(db, DefaultConfig(), zerolog.Nop())

	r, err := c.CompressImage("spinner", bytes.NewReader(gif), image.Options{})
	require.NoError(t, err)

	records, err := db.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "spinner", records[0].Name)
	assert.Equal(t, len(r.Data), records[0].Size)

	// Same image and options come from the cache
	cached, err := c.CompressImage("spinner", bytes.NewReader(gif), image.Options{})
	require.NoError(t, err)
	assert.Equal(t, r.Data, cached.Data)

	records, err = db.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Different options give different frames so are stored separately
	_, err = c.CompressImage("spinner", bytes.NewReader(gif), image.Options{Invert: true})
	require.NoError(t, err)

	records, err = db.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAddConcurrent(t *testing.T) {
	a, err := source.Parse([]byte(spinner))
	require.NoError(t, err)
	r, err := animation.Compress(a, true)
	require.NoError(t, err)

	db := newTestDB(t)
	sha := SHA1([]byte(spinner))

	var wg sync.WaitGroup
	errs := make([]error, 16)
	ids := make([]int64, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = db.Add(sha, "spinner", a, r)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err)
		assert.Equal(t, ids[0], ids[i])
	}

	records, err := db.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestScanIdenticalSources(t *testing.T) {
	dir, err := ioutil.TempDir("", "microanim")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	for i := 0; i < 32; i++ {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, strconv.Itoa(i)+SourceExt), []byte(spinner), 0644))
	}

	config := DefaultConfig()
	config.Workers = 8

	for round := 0; round < 5; round++ {
		// Fresh database each round so every worker misses the cache
		db := newTestDB(t)
		c := New(db, config, zerolog.Nop())
		require.NoError(t, c.Scan(dir), "round %d", round)

		records, err := db.List()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}
}

package glcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// ChecksumFile is the name of the file inside the cache directory that
// records the hash of the source the cached variants were compiled from.
const ChecksumFile = "checksum.bin"

// ChecksumSize is the length in bytes of a [Checksum].
const ChecksumSize = sha256.Size

// Checksum returns the content hash of source compiled with compilerFlags.
// The flags are hashed as a little endian uint32 appended to the source.
func Checksum(source []byte, compilerFlags uint32) [ChecksumSize]byte {
	h := sha256.New()
	h.Write(source)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], compilerFlags)
	h.Write(buf[:])
	var sum [ChecksumSize]byte
	h.Sum(sum[:0])
	return sum
}

// Disk is a content addressed directory of compiled variant blobs. Every
// blob in the directory was compiled from the source whose checksum is
// stored in [ChecksumFile]; on mismatch the whole directory is recreated
// before any blob is read.
//
// A failed write marks the directory untrusted and the next access
// invalidates it. A failure to invalidate is returned to the caller.
type Disk struct {
	fs  afero.Fs
	dir string
	log *slog.Logger

	sum       [ChecksumSize]byte
	hasSum    bool
	validated bool
	untrusted bool

	enc *zstd.Encoder
	dec *zstd.Decoder
	buf []byte
}

// NewDisk returns a disk cache rooted at dir of fsys. Nothing is touched on
// disk until a source is set and the first blob is requested.
func NewDisk(fsys afero.Fs, dir string) (*Disk, error) {
	if fsys == nil {
		return nil, errors.New("nil filesystem")
	} else if dir == "" {
		return nil, errors.New("empty cache directory")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Disk{fs: fsys, dir: dir, enc: enc, dec: dec, log: nopLogger}, nil
}

// SetLogger sets the logger used to report invalidations and write errors.
func (d *Disk) SetLogger(l *slog.Logger) {
	if l == nil {
		l = nopLogger
	}
	d.log = l
}

// Dir returns the cache directory.
func (d *Disk) Dir() string { return d.dir }

// SetSource sets the source cached blobs must correspond to. If the
// checksum differs from the current one the directory is revalidated on next access.
func (d *Disk) SetSource(source []byte, compilerFlags uint32) {
	sum := Checksum(source, compilerFlags)
	if d.hasSum && sum == d.sum {
		return
	}
	d.sum = sum
	d.hasSum = true
	d.validated = false
}

// Validate compares the stored checksum against the current source and
// invalidates the directory on mismatch or when a previous write failed.
// It is a no-op when the directory was already validated for the current source.
func (d *Disk) Validate() error {
	if !d.hasSum {
		return errors.New("cache source not set")
	}
	if d.validated && !d.untrusted {
		return nil
	}
	if !d.untrusted {
		stored, err := afero.ReadFile(d.fs, d.path(ChecksumFile))
		if err == nil && bytes.Equal(stored, d.sum[:]) {
			d.validated = true
			return nil
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.log.Warn("reading cache checksum", slog.String("dir", d.dir), slog.String("err", err.Error()))
		}
	}
	return d.Invalidate()
}

// Invalidate deletes the cache directory, recreates it and stores the checksum
// of the current source.
func (d *Disk) Invalidate() error {
	if !d.hasSum {
		return errors.New("cache source not set")
	}
	d.log.Info("invalidating shader cache", slog.String("dir", d.dir))
	err := d.fs.RemoveAll(d.dir)
	if err != nil {
		return fmt.Errorf("removing shader cache: %w", err)
	}
	err = d.fs.MkdirAll(d.dir, 0o755)
	if err != nil {
		return fmt.Errorf("creating shader cache: %w", err)
	}
	err = afero.WriteFile(d.fs, d.path(ChecksumFile), d.sum[:], 0o644)
	if err != nil {
		return fmt.Errorf("storing shader cache checksum: %w", err)
	}
	d.validated = true
	d.untrusted = false
	return nil
}

// Load returns the blob stored as name. ok is false when there is no such
// blob. A blob that fails to decompress is deleted and reported as absent.
// A read error invalidates the directory and reports the blob as absent;
// the error is only returned if the invalidation fails.
func (d *Disk) Load(name string) (blob []byte, ok bool, err error) {
	err = d.Validate()
	if err != nil {
		return nil, false, err
	}
	compressed, err := afero.ReadFile(d.fs, d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		d.log.Warn("reading cache entry", slog.String("name", name), slog.String("err", err.Error()))
		d.untrusted = true
		err = d.Validate()
		if err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	d.buf, err = d.dec.DecodeAll(compressed, d.buf[:0])
	if err != nil {
		d.log.Warn("discarding corrupt cache entry", slog.String("name", name), slog.String("err", err.Error()))
		if rerr := d.fs.Remove(d.path(name)); rerr != nil {
			d.log.Warn("removing corrupt cache entry", slog.String("name", name), slog.String("err", rerr.Error()))
		}
		return nil, false, nil
	}
	return append([]byte(nil), d.buf...), true, nil
}

// Store persists blob as name. On failure the directory is marked untrusted
// so that the next access invalidates it.
func (d *Disk) Store(name string, blob []byte) error {
	err := d.Validate()
	if err != nil {
		return err
	}
	d.buf = d.enc.EncodeAll(blob, d.buf[:0])
	err = afero.WriteFile(d.fs, d.path(name), d.buf, 0o644)
	if err != nil {
		d.untrusted = true
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}

// Close releases the compression state.
func (d *Disk) Close() {
	d.enc.Close()
	d.dec.Close()
}

func (d *Disk) path(name string) string { return filepath.Join(d.dir, name) }

package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/pierrec/lz4"
)

// archiveMagic opens every content archive.
var archiveMagic = [4]byte{'O', 'X', 'A', '\x00'}

// ArchiveExt is the file extension of content archives.
const ArchiveExt = ".oxa"

const (
	archiveVersion = 1

	// magic + little endian uint32 header length
	archivePreamble = len(archiveMagic) + 4
)

// ErrArchiveFormat is returned when the data is not a content archive.
var ErrArchiveFormat = errors.New("loader: not a content archive")

// ArchiveEntry locates one asset in an archive. Offset is relative to the end of the header.
type ArchiveEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// archiveHeader is gob encoded after the preamble.
type archiveHeader struct {
	Version int
	Index   []ArchiveEntry
}

// ArchiveBuilder collects assets and writes them as a single archive.
// Each asset is lz4 compressed on its own so it can be read back without touching the others.
type ArchiveBuilder struct {
	mu    sync.Mutex
	names map[string]struct{}
	index []ArchiveEntry
	blobs bytes.Buffer
}

// NewArchiveBuilder creates an empty ArchiveBuilder.
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{names: make(map[string]struct{})}
}

// Add compresses data and appends it under name. Safe for concurrent use.
//
// Parameters:
//   - name: the asset name
//   - data: the raw asset bytes
//
// Returns:
//   - error: an error if name was already added or compression fails
func (b *ArchiveBuilder) Add(name string, data []byte) error {
	var compressed bytes.Buffer
	w := lz4.NewWriter(&compressed)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.names[name]; ok {
		return fmt.Errorf("archive already holds %s", name)
	}
	b.names[name] = struct{}{}
	b.index = append(b.index, ArchiveEntry{
		Name:           name,
		Offset:         int64(b.blobs.Len()),
		Size:           int64(len(data)),
		CompressedSize: int64(compressed.Len()),
	})
	b.blobs.Write(compressed.Bytes())
	return nil
}

// AddSource adds every asset src lists.
//
// Parameters:
//   - src: the source to pack
//
// Returns:
//   - error: the first read or add error
func (b *ArchiveBuilder) AddSource(src Source) error {
	names, err := src.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := src.Open(name)
		if err != nil {
			return err
		}
		if err := b.Add(name, data); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo writes the archive to w.
func (b *ArchiveBuilder) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var header bytes.Buffer
	if err := gob.NewEncoder(&header).Encode(archiveHeader{Version: archiveVersion, Index: b.index}); err != nil {
		return 0, fmt.Errorf("failed to encode archive header: %w", err)
	}

	preamble := make([]byte, archivePreamble)
	copy(preamble, archiveMagic[:])
	binary.LittleEndian.PutUint32(preamble[len(archiveMagic):], uint32(header.Len()))

	var total int64
	for _, part := range [][]byte{preamble, header.Bytes(), b.blobs.Bytes()} {
		n, err := w.Write(part)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ArchiveSource serves assets out of an archive written by ArchiveBuilder.
type ArchiveSource struct {
	r      io.ReaderAt
	base   int64
	index  map[string]ArchiveEntry
	closer io.Closer
}

var _ Source = &ArchiveSource{}

// OpenArchive reads the archive header from r. Asset bytes are read lazily on Open.
//
// Parameters:
//   - r: the archive data
//
// Returns:
//   - *ArchiveSource: the source
//   - error: ErrArchiveFormat or a read error
func OpenArchive(r io.ReaderAt) (*ArchiveSource, error) {
	preamble := make([]byte, archivePreamble)
	if _, err := r.ReadAt(preamble, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveFormat, err)
	}
	if !bytes.Equal(preamble[:len(archiveMagic)], archiveMagic[:]) {
		return nil, ErrArchiveFormat
	}
	headerSize := int64(binary.LittleEndian.Uint32(preamble[len(archiveMagic):]))

	var header archiveHeader
	hr := io.NewSectionReader(r, int64(archivePreamble), headerSize)
	if err := gob.NewDecoder(hr).Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveFormat, err)
	}
	if header.Version != archiveVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrArchiveFormat, header.Version)
	}

	a := &ArchiveSource{
		r:     r,
		base:  int64(archivePreamble) + headerSize,
		index: make(map[string]ArchiveEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		a.index[e.Name] = e
	}
	return a, nil
}

// OpenArchiveFile opens the archive at path. Close releases the file.
func OpenArchiveFile(path string) (*ArchiveSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := OpenArchive(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// Entry returns the index entry for name.
func (a *ArchiveSource) Entry(name string) (ArchiveEntry, bool) {
	e, ok := a.index[name]
	return e, ok
}

func (a *ArchiveSource) Open(name string) ([]byte, error) {
	e, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("archive has no %s: %w", name, os.ErrNotExist)
	}
	zr := lz4.NewReader(io.NewSectionReader(a.r, a.base+e.Offset, e.CompressedSize))
	data := make([]byte, e.Size)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	return data, nil
}

func (a *ArchiveSource) List() ([]string, error) {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the underlying file when the archive was opened with OpenArchiveFile.
func (a *ArchiveSource) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

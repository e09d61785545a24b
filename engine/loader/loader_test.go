package loader

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func testFS(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"sprites/hero.png":    {Data: encodePNG(t, 3, 2)},
		"shaders/sprite.wgsl": {Data: []byte("@vertex fn vs_main() {}")},
		"data/level.bin":      {Data: []byte{1, 2, 3, 4}},
		"sprites/broken.png":  {Data: []byte("not a png")},
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want ContentKind
	}{
		{"a.png", ContentTexture},
		{"b/C.JPG", ContentTexture},
		{"c.webp", ContentTexture},
		{"d.bmp", ContentTexture},
		{"e.wgsl", ContentShader},
		{"f.bin", ContentBuffer},
		{"noext", ContentBuffer},
	}
	for _, tt := range tests {
		if got := kindOf(tt.name); got != tt.want {
			t.Errorf("kindOf(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	l, err := NewLoader(WithSource(NewFSSource(testFS(t))))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()

	tex, err := l.Load("sprites/hero.png")
	if err != nil {
		t.Fatalf("Load png: %v", err)
	}
	d := tex.Descriptor
	if d.Kind != ContentTexture || d.Width != 3 || d.Height != 2 || d.Format != gpu.TextureFormatRGBA8UnormSrgb {
		t.Errorf("descriptor = %+v", d)
	}
	if len(tex.Data) != 3*2*4 {
		t.Errorf("pixels = %d bytes, want 24", len(tex.Data))
	}
	if got := tex.Data[4:8]; !bytes.Equal(got, []byte{50, 0, 200, 255}) {
		t.Errorf("pixel (1,0) = %v", got)
	}

	src, err := l.Load("shaders/sprite.wgsl")
	if err != nil || src.Descriptor.Kind != ContentShader || string(src.Data) != "@vertex fn vs_main() {}" {
		t.Errorf("Load wgsl = %+v, %v", src, err)
	}

	raw, err := l.Load("data/level.bin")
	if err != nil || raw.Descriptor.Kind != ContentBuffer || !bytes.Equal(raw.Data, []byte{1, 2, 3, 4}) {
		t.Errorf("Load bin = %+v, %v", raw, err)
	}
}

func TestLoadUnavailable(t *testing.T) {
	l, err := NewLoader(WithSource(NewFSSource(testFS(t))))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()

	for _, name := range []string{"missing.png", "sprites/broken.png"} {
		if _, err := l.Load(name); !errors.Is(err, ErrContentUnavailable) {
			t.Errorf("Load(%q) err = %v, want ErrContentUnavailable", name, err)
		}
	}
}

func TestNewLoaderRequiresSource(t *testing.T) {
	if _, err := NewLoader(); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestPrefetch(t *testing.T) {
	l, err := NewLoader(WithSource(NewFSSource(testFS(t))), WithWorkers(3), WithQueueSize(8))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()

	if got := l.Drain(); got != nil {
		t.Fatalf("Drain before prefetch = %v", got)
	}

	l.Prefetch("sprites/hero.png", "data/level.bin", "missing.bin")
	l.Wait()
	if n := l.Pending(); n != 0 {
		t.Errorf("Pending = %d after Wait", n)
	}

	results := l.Drain()
	if len(results) != 3 {
		t.Fatalf("Drain = %d results, want 3", len(results))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	if results[0].Err != nil || results[0].Content.Descriptor.Kind != ContentBuffer {
		t.Errorf("level.bin = %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrContentUnavailable) {
		t.Errorf("missing.bin err = %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Content.Descriptor.Width != 3 {
		t.Errorf("hero.png = %+v", results[2])
	}

	if got := l.Drain(); got != nil {
		t.Errorf("second Drain = %v, want nil", got)
	}
}

func TestPrefetchAfterClose(t *testing.T) {
	l, err := NewLoader(WithSource(NewFSSource(testFS(t))))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	l.Close()
	l.Close()

	l.Prefetch("data/level.bin")
	results := l.Drain()
	if len(results) != 1 || !errors.Is(results[0].Err, ErrClosed) {
		t.Fatalf("results = %+v", results)
	}
	if _, err := l.Load("data/level.bin"); !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("Load after Close err = %v", err)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	fsys := testFS(t)
	b := NewArchiveBuilder()
	if err := b.AddSource(NewFSSource(fsys)); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if err := b.Add("data/level.bin", nil); err == nil {
		t.Error("duplicate Add succeeded")
	}
	if err := b.Add("empty", nil); err != nil {
		t.Fatalf("Add empty: %v", err)
	}

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	if err != nil || n != int64(buf.Len()) {
		t.Fatalf("WriteTo = %d, %v (buffer %d)", n, err, buf.Len())
	}

	a, err := OpenArchive(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	names, _ := a.List()
	want := []string{"data/level.bin", "empty", "shaders/sprite.wgsl", "sprites/broken.png", "sprites/hero.png"}
	if len(names) != len(want) {
		t.Fatalf("List = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("List = %v, want %v", names, want)
		}
	}

	for name, f := range fsys {
		got, err := a.Open(name)
		if err != nil {
			t.Fatalf("Open(%q): %v", name, err)
		}
		if !bytes.Equal(got, f.Data) {
			t.Errorf("Open(%q) content mismatch", name)
		}
		if e, _ := a.Entry(name); e.Size != int64(len(f.Data)) {
			t.Errorf("Entry(%q).Size = %d", name, e.Size)
		}
	}
	if got, err := a.Open("empty"); err != nil || len(got) != 0 {
		t.Errorf("Open(empty) = %v, %v", got, err)
	}
	if _, err := a.Open("nope"); err == nil {
		t.Error("Open of unknown name succeeded")
	}

	l, err := NewLoader(WithSource(a))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()
	c, err := l.Load("sprites/hero.png")
	if err != nil || c.Descriptor.Width != 3 || c.Descriptor.Height != 2 {
		t.Errorf("Load from archive = %+v, %v", c.Descriptor, err)
	}
}

func TestOpenArchiveRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("OX")},
		{"bad magic", []byte("KAR\x00\x00\x00\x00\x00")},
		{"bad header", append(append([]byte(nil), archiveMagic[:]...), 4, 0, 0, 0, 1, 2, 3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenArchive(bytes.NewReader(tt.data)); !errors.Is(err, ErrArchiveFormat) {
				t.Errorf("err = %v, want ErrArchiveFormat", err)
			}
		})
	}
}

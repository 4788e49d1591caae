// Package morphio loads and writes morphology files. Codecs are registered
// per file extension; SWC is built in.
package morphio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/morphtool/internal/logger"
	"github.com/chazu/morphtool/pkg/morph"
)

var (
	// ErrNoCodec is returned for file extensions without a registered codec.
	ErrNoCodec = errors.New("morphio: no codec for file format")
	// ErrUnsupportedSoma is returned when a codec cannot store the
	// morphology's soma encoding.
	ErrUnsupportedSoma = errors.New("morphio: soma encoding not supported by format")
)

// Codec reads and writes one file format.
type Codec interface {
	Decode(r io.Reader) (*morph.Morphology, error)
	Encode(w io.Writer, m *morph.Morphology) error
}

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{".swc": SWC{}}
)

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register installs c for files with extension ext (with or without the
// leading dot, case insensitive), replacing any previous codec.
func Register(ext string, c Codec) {
	mu.Lock()
	defer mu.Unlock()
	codecs[normExt(ext)] = c
}

// Extensions returns the registered extensions, sorted.
func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	exts := make([]string, 0, len(codecs))
	for ext := range codecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// CodecFor returns the codec registered for path's extension.
func CodecFor(path string) (Codec, error) {
	ext := normExt(filepath.Ext(path))
	mu.RLock()
	c, ok := codecs[ext]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoCodec, ext)
	}
	return c, nil
}

// Load reads the morphology stored at path.
func Load(path string) (*morph.Morphology, error) {
	c, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("morphio: %w", err)
	}
	defer f.Close()

	m, err := c.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("morphio: %s: %w", path, err)
	}
	logger.Debug("Loaded morphology", "path", path, "sections", m.SectionCount(), "points", m.PointCount())
	return m, nil
}

// Write stores m at path, creating parent directories as needed. Nothing
// is left at path when encoding fails.
func Write(m *morph.Morphology, path string) error {
	c, err := CodecFor(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("morphio: %w", err)
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, m); err != nil {
		return fmt.Errorf("morphio: %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("morphio: %w", err)
	}
	logger.Debug("Wrote morphology", "path", path, "sections", m.SectionCount())
	return nil
}

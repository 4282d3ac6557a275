// Package archive unpacks resource archives into their target directory.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// Format is an archive container and compression combination.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarBzip2
)

var (
	// ErrUnsupported is returned for a file whose name matches no known format.
	ErrUnsupported = errors.New("unsupported archive format")

	// ErrUnsafePath is returned for an entry that would land outside the
	// destination directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Detect returns the format implied by name's extension.
func Detect(name string) Format {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".zip"), strings.HasSuffix(n, ".jar"):
		return FormatZip
	case strings.HasSuffix(n, ".tar.gz"), strings.HasSuffix(n, ".tgz"):
		return FormatTarGzip
	case strings.HasSuffix(n, ".tar.bz2"), strings.HasSuffix(n, ".tbz2"), strings.HasSuffix(n, ".tbz"):
		return FormatTarBzip2
	case strings.HasSuffix(n, ".tar"):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// Extract unpacks the archive at src into destDir and returns the number of
// regular files written. Links and special files are skipped.
func Extract(src, destDir string) (int, error) {
	format := Detect(src)
	if format == FormatUnknown {
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", destDir, err)
	}

	if format == FormatZip {
		return extractZip(src, destDir)
	}

	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = f.Close() }() // read-only

	var r io.Reader = f
	switch format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("reading gzip header of %s: %w", src, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatTarBzip2:
		bz, err := bzip2.NewReader(f, &bzip2.ReaderConfig{})
		if err != nil {
			return 0, fmt.Errorf("creating bzip2 reader for %s: %w", src, err)
		}
		defer func() { _ = bz.Close() }()
		r = bz
	}
	return extractTar(r, destDir)
}

func extractZip(src, destDir string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("opening zip %s: %w", src, err)
	}
	defer func() { _ = zr.Close() }()

	n := 0
	for _, zf := range zr.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return n, err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return n, err
			}
		case mode.IsRegular():
			rc, err := zf.Open()
			if err != nil {
				return n, fmt.Errorf("opening %s in archive: %w", zf.Name, err)
			}
			err = writeFile(target, rc, mode)
			_ = rc.Close()
			if err != nil {
				return n, err
			}
			n++
		default:
			logging.Get("archive").Debug("skipping non-regular entry", "entry", zf.Name, "mode", mode)
		}
	}
	return n, nil
}

func extractTar(r io.Reader, destDir string) (int, error) {
	tr := tar.NewReader(r)
	n := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return n, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return n, err
			}
			n++
		default:
			logging.Get("archive").Debug("skipping non-regular entry", "entry", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

// safeJoin resolves an archive entry name under destDir, rejecting absolute
// names, drive letters and parent traversal.
func safeJoin(destDir, name string) (string, error) {
	clean := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(clean, "/") || strings.Contains(clean, ":") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	clean = path.Clean(clean)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if clean == "." {
		return destDir, nil
	}
	return filepath.Join(destDir, filepath.FromSlash(clean)), nil
}

func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	perm := mode.Perm()&0o755 | 0o600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}

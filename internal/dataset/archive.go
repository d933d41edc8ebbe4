package dataset

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedArchive is returned for archive extensions Unpack cannot read.
var ErrUnsupportedArchive = errors.New("dataset: unsupported archive format")

// Unpack extracts the image entries of a .zip, .tar, .tar.gz or .tgz archive
// into destDir and returns how many files were written. Entry paths are
// flattened to their base name; directories, hidden files and non-image
// entries are skipped.
func Unpack(ctx context.Context, archivePath, destDir string) (int, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", destDir, err)
	}
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return unpackZip(ctx, archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return unpackTar(ctx, archivePath, destDir, true)
	case strings.HasSuffix(lower, ".tar"):
		return unpackTar(ctx, archivePath, destDir, false)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedArchive, archivePath)
	}
}

func unpackTar(ctx context.Context, path, destDir string, gzipped bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return 0, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := entryName(hdr.Name)
		if !ok {
			continue
		}
		if err := writeEntry(filepath.Join(destDir, name), tr); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func unpackZip(ctx context.Context, path, destDir string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	written := 0
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if zf.FileInfo().IsDir() {
			continue
		}
		name, ok := entryName(zf.Name)
		if !ok {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return written, fmt.Errorf("open entry %s: %w", zf.Name, err)
		}
		err = writeEntry(filepath.Join(destDir, name), rc)
		rc.Close()
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// entryName reduces an archive path to a safe base name and reports whether
// the entry should be extracted at all.
func entryName(raw string) (string, bool) {
	name := filepath.Base(filepath.FromSlash(raw))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", false
	}
	if strings.HasPrefix(name, ".") || !isImageName(name) {
		return "", false
	}
	return name, true
}

func writeEntry(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

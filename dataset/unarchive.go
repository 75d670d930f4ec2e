package dataset

import (
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4"
)

// unpackArchive extracts path into dir when it is a .zip, .gz or .lz4 archive and
// returns the extracted file. It returns "" for plain files. The source archive is left in place.
func unpackArchive(path, dir string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return unpackZipArchive(path, dir)
	case ".gz":
		return unpackStream(path, dir, ".gz", func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case ".lz4":
		return unpackStream(path, dir, ".lz4", func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		})
	}
	return "", nil
}

// unpackZipArchive extracts the largest file of the archive.
func unpackZipArchive(path, dir string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var largest *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if largest == nil || f.UncompressedSize64 > largest.UncompressedSize64 {
			largest = f
		}
	}
	if largest == nil {
		return "", fmt.Errorf("zip %s contains no files", filepath.Base(path))
	}

	rc, err := largest.Open()
	if err != nil {
		return "", fmt.Errorf("open zip member %s: %w", largest.Name, err)
	}
	defer rc.Close()

	dest := filepath.Join(dir, filepath.Base(largest.Name))
	if err := writeFile(dest, rc); err != nil {
		return "", err
	}
	return dest, nil
}

func unpackStream(path, dir, ext string, wrap func(io.Reader) (io.Reader, error)) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	r, err := wrap(file)
	if err != nil {
		return "", fmt.Errorf("open %s archive: %w", ext, err)
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	dest := filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err := writeFile(dest, r); err != nil {
		return "", err
	}
	return dest, nil
}

func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(dest), err)
	}
	return nil
}

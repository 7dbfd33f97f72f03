package source

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const procfileName = "Procfile"

// Upper bound on the size of a Procfile read from an archive.
const maxProcfileSize = 64 * 1024

var errNoProcfile = errors.New("archive contains no Procfile")

func isProcfile(name string) bool {
	return strings.EqualFold(path.Base(name), procfileName)
}

func depth(name string) int {
	return strings.Count(strings.Trim(name, "/"), "/")
}

// Depth of the repository root inside a GitHub archive, whose entries all sit below one top directory.
const rootDepth = 1

// procfileFromTarball returns the least nested Procfile in a gzipped tarball.
// Reading stops at the first Procfile in the repository root. A truncated
// stream still yields the best Procfile read before the cut.
func procfileFromTarball(r io.Reader) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	var found []byte
	foundDepth := -1

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if foundDepth >= 0 {
				break
			}
			return nil, fmt.Errorf("read tarball: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !isProcfile(header.Name) {
			continue
		}
		d := depth(header.Name)
		if foundDepth >= 0 && d >= foundDepth {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxProcfileSize))
		if err != nil {
			if foundDepth >= 0 {
				break
			}
			return nil, fmt.Errorf("read %s: %w", header.Name, err)
		}
		found, foundDepth = data, d
		if d <= rootDepth {
			break
		}
	}

	if foundDepth < 0 {
		return nil, errNoProcfile
	}
	return found, nil
}

// procfileFromZipball returns the least nested Procfile in a zip archive.
func procfileFromZipball(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}

	var match *zip.File
	for _, file := range zr.File {
		if file.FileInfo().IsDir() || !isProcfile(file.Name) {
			continue
		}
		if match == nil || depth(file.Name) < depth(match.Name) {
			match = file
		}
	}
	if match == nil {
		return nil, errNoProcfile
	}

	rc, err := match.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", match.Name, err)
	}
	defer rc.Close()

	return io.ReadAll(io.LimitReader(rc, maxProcfileSize))
}

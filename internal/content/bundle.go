package content

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"testing/fstest"

	"github.com/klauspost/compress/gzip"

	"github.com/keithlinneman/draftsite/internal/pathutil"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

const (
	maxBundleSize   int64 = 50 << 20 // compressed, as downloaded
	maxSingleFile   int64 = 10 << 20
	maxTotalExtract int64 = 100 << 20
)

// readWithHash reads at most maxSize bytes from r and returns them with
// their hex sha256. Bundles are held in memory; nothing touches disk.
func readWithHash(r io.Reader, maxSize int64) ([]byte, string, error) {
	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(io.LimitReader(r, maxSize+1), h))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > maxSize {
		return nil, "", xerrors.WithStack(fmt.Errorf("%w: over %d bytes", ErrBundleTooLarge, maxSize))
	}
	return data, hex.EncodeToString(h.Sum(nil)), nil
}

// extractor unpacks a tar stream into memory within a byte budget.
type extractor struct {
	out       fstest.MapFS
	perFile   int64
	remaining int64
}

// extractTarGzToMem unpacks a gzipped tarball. Directories are implied by
// file paths; any entry that is not a regular file or directory fails the
// whole bundle, as do absolute or dotted paths.
func extractTarGzToMem(data []byte) (fs.FS, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	x := extractor{out: fstest.MapFS{}, perFile: maxSingleFile, remaining: maxTotalExtract}
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return x.out, nil
		}
		if err != nil {
			return nil, xerrors.Wrap(err, "read tar header")
		}
		if err := x.add(hdr, tr); err != nil {
			return nil, err
		}
	}
}

func (x *extractor) add(hdr *tar.Header, body io.Reader) error {
	name := path.Clean(hdr.Name)
	switch {
	case name == "." || name == "":
		return nil
	case path.IsAbs(name):
		return xerrors.Newf("absolute path in archive: %s", hdr.Name)
	case pathutil.HasDotSegments(name):
		return xerrors.Newf("path traversal in archive: %s", hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return nil
	case tar.TypeReg:
	default:
		return xerrors.Newf("unsupported entry %s (type %q)", name, hdr.Typeflag)
	}

	if hdr.Size > x.perFile {
		return xerrors.Newf("file %s is %d bytes, limit %d", name, hdr.Size, x.perFile)
	}
	b, err := io.ReadAll(io.LimitReader(body, x.perFile+1))
	if err != nil {
		return xerrors.Wrapf(err, "read %s", name)
	}
	if int64(len(b)) > x.perFile {
		return xerrors.Newf("file %s exceeds %d bytes", name, x.perFile)
	}
	if x.remaining -= int64(len(b)); x.remaining < 0 {
		return xerrors.Newf("bundle expands past %d bytes", maxTotalExtract)
	}
	x.out[name] = &fstest.MapFile{Data: b, Mode: hdr.FileInfo().Mode().Perm()}
	return nil
}

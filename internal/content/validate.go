package content

import (
	"io/fs"

	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// ValidationOptions controls ValidateSnapshot. The zero value only requires
// a non-empty index.html.
type ValidationOptions struct {
	// MinFiles rejects bundles with fewer files. 0 disables the check.
	MinFiles int
	// RequireManifest rejects bundles without a parsed manifest.json.
	RequireManifest bool
}

func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{MinFiles: 2, RequireManifest: true}
}

// ValidateSnapshot runs before a bundle is swapped in and returns the first
// failure.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil || snap.FS == nil {
		return xerrors.New("validate: snapshot has no filesystem")
	}
	checks := []func() error{
		func() error { return nonEmpty(snap.FS, "index.html") },
		func() error { return minFiles(snap.FS, opts.MinFiles) },
		func() error {
			switch {
			case snap.Manifest != nil:
				return snap.Manifest.checkPages(snap.FS)
			case opts.RequireManifest:
				return xerrors.New("validate: manifest.json is required but missing")
			}
			return nil
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func nonEmpty(fsys fs.FS, name string) error {
	fi, err := fs.Stat(fsys, name)
	if err != nil {
		return xerrors.Wrapf(err, "validate: %s", name)
	}
	if fi.IsDir() || fi.Size() == 0 {
		return xerrors.Newf("validate: %s is empty", name)
	}
	return nil
}

func minFiles(fsys fs.FS, min int) error {
	if min <= 0 {
		return nil
	}
	n := 0
	err := fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	if err != nil {
		return xerrors.Wrap(err, "validate: counting files")
	}
	if n < min {
		return xerrors.Newf("validate: bundle has %d files, minimum is %d", n, min)
	}
	return nil
}

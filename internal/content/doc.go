// Package content manages the content bundles served for each site version.
//
// Every site version (Live, Working) has its own bundle: a tar.gz whose
// SHA-256 is published in an SSM parameter and whose bytes live in S3 under
// that hash. The pieces are:
//   - [Loader]: resolves the current hash, downloads and verifies the bundle,
//     extracts it to memory
//   - [Manager]: the active [Snapshot] for one site version, swapped atomically
//   - [Sites]: the Live and Working managers, with Working falling back to Live
//   - [Watcher]: polls for hash changes and hot-swaps validated bundles
//
// Extraction enforces a maximum compressed size, per-file size and total
// extracted size, and rejects anything but regular files.
package content

package content

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/draftsite/internal/cryptoutil"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/siteversion"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

const maxSignatureSize int64 = 16 << 10

var (
	ErrChecksumMismatch = errors.New("content: bundle checksum mismatch")
	ErrSignature        = errors.New("content: bundle signature invalid")
	ErrBundleTooLarge   = errors.New("content: object exceeds size limit")
)

// SSMAPI is the subset of the SSM client the loader uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// S3API is the subset of the S3 client the loader uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SignatureVerifier checks a detached signature over the bundle bytes.
// cryptoutil.KMSVerifier implements it.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

type LoaderOptions struct {
	Logger log.Logger
	Site   siteversion.SiteVersion

	// SSMParam names the parameter holding the published bundle's sha256.
	SSMParam string

	// Bundles live at s3://S3Bucket/S3Prefix/<hash>.tar.gz.
	S3Bucket string
	S3Prefix string

	SSMClient SSMAPI
	S3Client  S3API

	// Verifier, when set, requires {hash}.tar.gz.sig next to every bundle.
	Verifier SignatureVerifier

	// MaxBundleSize caps the compressed download. Zero uses 50MB.
	MaxBundleSize int64
}

// Loader fetches the bundles of one site version.
type Loader struct {
	opts      LoaderOptions
	ssmClient SSMAPI
	s3Client  S3API
	logger    log.Logger
}

func NewLoader(opts LoaderOptions) (*Loader, error) {
	var missing []error
	for name, ok := range map[string]bool{
		"SSMParam is required":            opts.SSMParam != "",
		"S3Bucket is required":            opts.S3Bucket != "",
		"SSM and S3 clients are required": opts.SSMClient != nil && opts.S3Client != nil,
	} {
		if !ok {
			missing = append(missing, xerrors.New(name))
		}
	}
	if !opts.Site.Valid() {
		missing = append(missing, xerrors.Newf("invalid site version %q", opts.Site))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MaxBundleSize <= 0 {
		opts.MaxBundleSize = maxBundleSize
	}
	opts.S3Prefix = strings.Trim(opts.S3Prefix, "/")

	return &Loader{
		opts:      opts,
		ssmClient: opts.SSMClient,
		s3Client:  opts.S3Client,
		logger:    opts.Logger.With("site", opts.Site.Label()),
	}, nil
}

func (l *Loader) Site() siteversion.SiteVersion { return l.opts.Site }

// PublishedHash reads the hash the publisher last wrote for this site.
func (l *Loader) PublishedHash(ctx context.Context) (string, error) {
	param := l.opts.SSMParam
	out, err := l.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "read %s", param)
	}
	value := ""
	if out.Parameter != nil {
		value = aws.ToString(out.Parameter.Value)
	}
	hash := strings.ToLower(strings.TrimSpace(value))
	if err := checkHash(hash); err != nil {
		return "", xerrors.Wrapf(err, "parameter %s", param)
	}
	return hash, nil
}

// checkHash keeps anything but a hex SHA-256 out of S3 keys.
func checkHash(hash string) error {
	if hash == "" {
		return xerrors.New("bundle hash is empty")
	}
	if b, err := hex.DecodeString(hash); err != nil || len(b) != 32 {
		return xerrors.Newf("bundle hash %q is not a hex sha256", shortHash(hash))
	}
	return nil
}

func (l *Loader) objectKey(hash string) string {
	return path.Join(l.opts.S3Prefix, hash+".tar.gz")
}

// Load resolves the published hash and loads that bundle.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	hash, err := l.PublishedHash(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadHash(ctx, hash)
}

// LoadHash downloads the bundle for hash, verifies it and extracts it to an
// in-memory filesystem.
func (l *Loader) LoadHash(ctx context.Context, hash string) (*Snapshot, error) {
	if err := checkHash(hash); err != nil {
		return nil, err
	}
	started := time.Now().UTC()
	key := l.objectKey(hash)
	l.logger.Info(ctx, "fetching bundle", "object", "s3://"+l.opts.S3Bucket+"/"+key)

	data, actual, err := l.getObject(ctx, key, l.opts.MaxBundleSize)
	if err != nil {
		return nil, err
	}

	// our policy is to always use cryptoutil.HashEqual for comparing hashes
	if !cryptoutil.HashEqual(actual, hash) {
		return nil, xerrors.WithStack(fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, shortHash(hash), shortHash(actual)))
	}

	signed := false
	if l.opts.Verifier != nil {
		if err := l.verifySignature(ctx, key, data); err != nil {
			return nil, err
		}
		signed = true
	}

	contentFS, err := extractTarGzToMem(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "unpack %s", shortHash(hash))
	}

	manifest, err := LoadManifest(contentFS)
	switch {
	case err == nil:
		l.logger.Info(ctx, "loaded content manifest",
			"version", manifest.Version,
			"pages", len(manifest.Pages),
			"commit", manifest.Source.Commit,
		)
	case errors.Is(err, fs.ErrNotExist):
		manifest = nil
	default:
		// unparseable manifests are rejected by validation when required
		l.logger.Warn(ctx, "ignoring unreadable manifest", "hash", shortHash(hash), "error", err)
		manifest = nil
	}

	l.logger.Info(ctx, "content bundle ready",
		"hash", shortHash(hash),
		"bytes", len(data),
		"signed", signed,
	)

	return &Snapshot{
		FS:       contentFS,
		Meta: Meta{
			Site:       l.opts.Site,
			Hash:       hash,
			Source:     SourceS3,
			VerifiedAt: time.Now().UTC(),
			Version:    manifestVersion(manifest),
			Signed:     signed,
		},
		Manifest: manifest,
		LoadedAt: started,
	}, nil
}

func (l *Loader) getObject(ctx context.Context, key string, limit int64) ([]byte, string, error) {
	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "get S3 object s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	data, hash, err := readWithHash(out.Body, limit)
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "read s3://%s/%s", l.opts.S3Bucket, key)
	}
	return data, hash, nil
}

// verifySignature fetches {key}.sig and checks it over the bundle bytes.
// The signature may be raw or base64 encoded.
func (l *Loader) verifySignature(ctx context.Context, key string, data []byte) error {
	raw, _, err := l.getObject(ctx, key+".sig", maxSignatureSize)
	if err != nil {
		return xerrors.WithStack(fmt.Errorf("%w: %w", ErrSignature, err))
	}
	sig := raw
	if dec, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw))); err == nil && len(dec) > 0 {
		sig = dec
	}
	if err := l.opts.Verifier.VerifySignature(ctx, data, sig); err != nil {
		return xerrors.WithStack(fmt.Errorf("%w: %w", ErrSignature, err))
	}
	return nil
}

func manifestVersion(m *Manifest) string {
	if m == nil {
		return ""
	}
	return m.Version
}

// Refresh loads the published bundle into mgr. mgr keeps its snapshot on
// failure.
func (l *Loader) Refresh(ctx context.Context, mgr *Manager) error {
	snap, err := l.Load(ctx)
	if err == nil {
		mgr.Set(*snap)
	}
	return err
}

package cryptoutil

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// KMSAPI is the part of *kms.Client the verifier calls.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// curveHash maps the ECDSA curves KMS signs with to their digest.
var curveHash = map[string]crypto.Hash{
	"P-256": crypto.SHA256,
	"P-384": crypto.SHA384,
}

// KMSVerifier checks detached bundle signatures against the public half of
// an asymmetric KMS key. The key is fetched on first use and kept; the
// signature math runs locally.
type KMSVerifier struct {
	client KMSAPI
	keyARN string

	// AllowPKCS1v15 accepts RSA PKCS#1 v1.5 signatures when PSS fails.
	AllowPKCS1v15 bool

	mu  sync.Mutex
	pub crypto.PublicKey
}

func NewKMSVerifier(client KMSAPI, keyARN string) *KMSVerifier {
	return &KMSVerifier{client: client, keyARN: keyARN}
}

func (v *KMSVerifier) KeyARN() string { return v.keyARN }

// PublicKey returns the cached key, fetching it from KMS on a miss. A failed
// fetch is not cached.
func (v *KMSVerifier) PublicKey(ctx context.Context) (crypto.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pub != nil {
		return v.pub, nil
	}
	pub, err := fetchPublicKey(ctx, v.client, v.keyARN)
	if err != nil {
		return nil, err
	}
	v.pub = pub
	return pub, nil
}

func fetchPublicKey(ctx context.Context, client KMSAPI, keyARN string) (crypto.PublicKey, error) {
	if client == nil {
		return nil, xerrors.New("kms: no client configured")
	}
	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyARN)})
	if err != nil {
		return nil, xerrors.Wrapf(err, "kms: get public key %s", keyARN)
	}
	if out.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return nil, xerrors.Newf("kms: key %s has usage %s, want %s", keyARN, out.KeyUsage, kmstypes.KeyUsageTypeSignVerify)
	}
	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, xerrors.Wrap(err, "kms: parse public key")
	}
	return pub, nil
}

// VerifySignature checks signature over message. ECDSA keys use the digest
// of their curve (SHA-256 for P-256, SHA-384 for P-384); RSA keys use
// SHA-256 with PSS.
func (v *KMSVerifier) VerifySignature(ctx context.Context, message, signature []byte) error {
	if len(signature) == 0 {
		return xerrors.New("signature: empty")
	}
	pub, err := v.PublicKey(ctx)
	if err != nil {
		return err
	}
	return v.check(pub, message, signature)
}

func (v *KMSVerifier) check(pub crypto.PublicKey, message, signature []byte) error {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		curve := key.Curve.Params().Name
		h, ok := curveHash[curve]
		if !ok {
			return xerrors.Newf("signature: unsupported ECDSA curve %s", curve)
		}
		if !ecdsa.VerifyASN1(key, digest(h, message), signature) {
			return xerrors.Newf("signature: ECDSA %s/%s mismatch", curve, h)
		}
		return nil

	case *rsa.PublicKey:
		d := digest(crypto.SHA256, message)
		err := rsa.VerifyPSS(key, crypto.SHA256, d, signature, nil)
		if err != nil && v.AllowPKCS1v15 {
			err = rsa.VerifyPKCS1v15(key, crypto.SHA256, d, signature)
		}
		return xerrors.Wrap(err, "signature: RSA")

	default:
		return xerrors.Newf("signature: unsupported key type %T", pub)
	}
}

func digest(h crypto.Hash, message []byte) []byte {
	d := h.New()
	d.Write(message)
	return d.Sum(nil)
}

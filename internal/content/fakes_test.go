package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/keithlinneman/draftsite/internal/cryptoutil"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/siteversion"
)

const (
	testSSMParam = "/draftsite/content/live/bundle-sha256"
	testBucket   = "draftsite-content"
	testS3Prefix = "bundles/live"
)

// fakeS3 serves objects from memory, keyed by object key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    []string
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey: " + key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

// fakeSSM returns a single parameter value or an error.
type fakeSSM struct {
	mu    sync.Mutex
	value *string
	err   error
	calls int
}

func ssmWithValue(v string) *fakeSSM { return &fakeSSM{value: &v} }

func (f *fakeSSM) set(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = &v
	f.err = nil
}

func (f *fakeSSM) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: f.value}}, nil
}

// fakeVerifier accepts exactly one signature value.
type fakeVerifier struct {
	want []byte
}

func (v fakeVerifier) VerifySignature(_ context.Context, _, sig []byte) error {
	if !bytes.Equal(sig, v.want) {
		return errors.New("signature mismatch")
	}
	return nil
}

func putBundle(f *fakeS3, hash string, data []byte) {
	f.put(testS3Prefix+"/"+hash+".tar.gz", data)
}

func newTestLoader(t *testing.T, s3c S3API, ssmc SSMAPI, mutate ...func(*LoaderOptions)) *Loader {
	t.Helper()
	opts := LoaderOptions{
		Logger:    log.Nop(),
		Site:      siteversion.Live,
		SSMParam:  testSSMParam,
		S3Bucket:  testBucket,
		S3Prefix:  testS3Prefix,
		SSMClient: ssmc,
		S3Client:  s3c,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	l, err := NewLoader(opts)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return l
}

// buildContentBundle returns a bundle that passes DefaultValidationOptions.
func buildContentBundle(t *testing.T) ([]byte, string) {
	t.Helper()
	man, err := json.Marshal(Manifest{
		Version: "1.0.0",
		Pages: []Page{
			{Title: "Home", Path: "/", File: "index.html"},
			{Title: "About", Path: "/about/", File: "about/index.html"},
		},
	})
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	data := makeTarGz(t, map[string]string{
		"index.html":       "<html>home</html>",
		"about/index.html": "<html>about</html>",
		"manifest.json":    string(man),
	})
	return data, cryptoutil.SHA256Hex(data)
}

func page(body string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(body)} }

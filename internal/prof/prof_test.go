package prof

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/keithlinneman/draftsite/internal/log"
)

func TestStart_Disabled(t *testing.T) {
	var buf bytes.Buffer
	lg, err := log.New(log.Options{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	ctx := log.WithContext(context.Background(), lg)

	// nothing is validated when profiling is off
	stop, err := Start(ctx, Options{ServerAddress: "", BlockProfileRate: 1})
	if err != nil || stop == nil {
		t.Fatalf("Start = %v, stop nil %v", err, stop == nil)
	}
	stop()
	stop()
	if !strings.Contains(buf.String(), "pyroscope disabled") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestStart_NoLoggerInContext(t *testing.T) {
	stop, err := Start(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	stop()
}

func TestStart_MissingAddress(t *testing.T) {
	stop, err := Start(context.Background(), Options{
		Enabled:  true,
		AppName:  "draftsite",
		TenantID: "ops",
		Tags:     map[string]string{"component": "server"},
	})
	if err == nil || !strings.Contains(err.Error(), "server address") {
		t.Fatalf("err = %v", err)
	}
	if stop == nil {
		t.Fatal("stop must be callable after a failed Start")
	}
	stop()
}

func TestOptions_Config(t *testing.T) {
	o := Options{AppName: "draftsite", ServerAddress: "https://pyro:4040", TenantID: "ops", Tags: map[string]string{"v": "1"}}
	cfg, err := o.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ApplicationName != "draftsite" || cfg.TenantID != "ops" || cfg.Tags["v"] != "1" {
		t.Fatalf("config = %+v", cfg)
	}
	if len(cfg.ProfileTypes) != len(profileTypes) {
		t.Fatalf("profile types = %v", cfg.ProfileTypes)
	}
}

func TestStart_UnreachableServer(t *testing.T) {
	// pyroscope uploads in the background, so Start may well succeed here
	stop, _ := Start(context.Background(), Options{
		Enabled:       true,
		AppName:       "draftsite",
		ServerAddress: "http://127.0.0.1:1",
	})
	if stop == nil {
		t.Fatal("nil stop")
	}
	stop()
}

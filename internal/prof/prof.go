// Package prof pushes continuous profiles to Pyroscope.
package prof

import (
	"context"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	AuthToken     string
	TenantID      string
	Tags          map[string]string

	// Mutex and block profiles stay off unless these are positive.
	ProfileMutexFraction int
	BlockProfileRate     int
}

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

func (o Options) config() (pyroscope.Config, error) {
	if o.ServerAddress == "" {
		return pyroscope.Config{}, xerrors.New("pyroscope: server address is empty")
	}
	return pyroscope.Config{
		ApplicationName: o.AppName,
		ServerAddress:   o.ServerAddress,
		AuthToken:       o.AuthToken,
		TenantID:        o.TenantID,
		Tags:            o.Tags,
		ProfileTypes:    profileTypes,
	}, nil
}

// Start begins profiling when enabled. The returned stop func is never nil
// and is safe to call when Start failed.
func Start(ctx context.Context, opts Options) (stop func(), err error) {
	L := log.FromContext(ctx).With("server_address", opts.ServerAddress, "app_name", opts.AppName)
	stop = func() {}
	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return stop, nil
	}

	cfg, err := opts.config()
	if err != nil {
		return stop, err
	}
	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	profiler, err := pyroscope.Start(cfg)
	if err != nil {
		return stop, xerrors.Wrap(err, "pyroscope start")
	}
	L.Info(ctx, "pyroscope started")
	return func() {
		if err := profiler.Stop(); err != nil {
			L.Warn(context.Background(), "pyroscope stop", "error", err)
			return
		}
		L.Info(context.Background(), "pyroscope stopped")
	}, nil
}

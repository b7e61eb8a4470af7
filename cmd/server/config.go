package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/keithlinneman/draftsite/internal/cfg"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/version"
)

// loadConfig resolves configuration with precedence cli flag, environment,
// config file, default. printed reports that -V was handled.
func loadConfig(fs *flag.FlagSet, args []string, vi version.Info) (conf cfg.App, printed bool, err error) {
	var showVersion bool
	cfg.Register(fs, &conf)
	fs.BoolVar(&showVersion, "V", false, "print version and build information and exit")
	if err := fs.Parse(args); err != nil {
		return conf, false, err
	}
	if showVersion {
		fmt.Println(vi)
		return conf, true, nil
	}

	cfg.FillFromEnv(fs, cfg.EnvPrefix, func(format string, a ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", a...)
	})
	if conf.ConfigFile != "" {
		if err := cfg.FillFromFile(fs, conf.ConfigFile); err != nil {
			return conf, false, fmt.Errorf("config error: %w", err)
		}
	}
	if err := cfg.Validate(conf); err != nil {
		return conf, false, fmt.Errorf("config error: %w", err)
	}
	return conf, false, nil
}

func newLogger(conf cfg.App, vi version.Info) (log.Logger, error) {
	// both levels passed cfg.Validate
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               vi.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	return lg, nil
}

// startupFields describes the effective configuration. Secrets are reported
// as set or unset only.
func startupFields(conf cfg.App, vi version.Info) []any {
	return []any{
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.Dirty(),
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"trusted_hops", conf.TrustedHops,
		"ratelimit_rps", conf.RateLimitRPS,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"trace_sample", conf.TraceSample,
		"enable_content_updates", conf.EnableContentUpdates,
		"content_s3_bucket", conf.ContentS3Bucket,
		"content_s3_prefix", conf.ContentS3Prefix,
		"content_live_ssm_param", conf.ContentLiveSSMParam,
		"content_working_ssm_param", conf.ContentWorkingSSMParam,
		"content_signing_key_arn", conf.ContentSigningKeyARN,
		"preview_enabled", conf.PreviewSecret != "",
		"preview_activation_param", conf.PreviewActivationParam,
		"preview_activation_url", conf.ActivationURL(),
		"draft_session_ttl", conf.DraftSessionTTL.String(),
		"draft_session_key_set", conf.DraftSessionKey != "",
	}
}

package main

import (
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/draftsite/internal/cfg"
	"github.com/keithlinneman/draftsite/internal/content"
	"github.com/keithlinneman/draftsite/internal/cryptoutil"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/metrics"
	"github.com/keithlinneman/draftsite/internal/siteversion"
	"github.com/keithlinneman/draftsite/internal/webassets"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// seedContent puts the embedded site into Live, if the binary carries one.
func seedContent(ctx context.Context, L log.Logger, sites *content.Sites, m *metrics.ServerMetrics) {
	live := sites.Manager(siteversion.Live)
	seedFS, ok := webassets.SeedSiteFS()
	if !ok {
		L.Info(ctx, "no seed site available")
		return
	}
	live.Set(content.SeedSnapshot(seedFS))
	reportContent(m, live)
	L.Info(ctx, "loaded seed site into live content")
}

// contentUpdater loads the published bundle of every site version that has
// an SSM parameter and keeps a watcher polling for the next one.
type contentUpdater struct {
	log     log.Logger
	conf    cfg.App
	sites   *content.Sites
	metrics *metrics.ServerMetrics

	s3       content.S3API
	ssm      content.SSMAPI
	verifier content.SignatureVerifier
}

func newContentUpdater(ctx context.Context, L log.Logger, conf cfg.App, sites *content.Sites, m *metrics.ServerMetrics) (*contentUpdater, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "load AWS config")
	}
	u := &contentUpdater{
		log:     L,
		conf:    conf,
		sites:   sites,
		metrics: m,
		s3:      s3.NewFromConfig(awsCfg),
		ssm:     ssm.NewFromConfig(awsCfg),
	}
	u.verifier = signatureVerifier(ctx, L, awsCfg, conf.ContentSigningKeyARN)
	return u, nil
}

// signatureVerifier returns nil, not a typed nil, when no key is configured.
func signatureVerifier(ctx context.Context, L log.Logger, awsCfg aws.Config, keyARN string) content.SignatureVerifier {
	if keyARN == "" {
		return nil
	}
	kv := cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), keyARN)
	L.Info(ctx, "bundle signature verification enabled", "kms_key_arn", kv.KeyARN())
	return kv
}

func (u *contentUpdater) param(site siteversion.SiteVersion) string {
	if site == siteversion.Working {
		return u.conf.ContentWorkingSSMParam
	}
	return u.conf.ContentLiveSSMParam
}

// start loads each site and runs its watcher in g. A failed first load is
// logged and left to the watcher; Live keeps serving the seed meanwhile.
func (u *contentUpdater) start(ctx context.Context, g *errgroup.Group) error {
	for _, site := range siteversion.All() {
		param := u.param(site)
		if param == "" {
			u.log.Info(ctx, "no ssm parameter configured, content updates disabled for site", "site", site.Label())
			continue
		}
		loader, err := content.NewLoader(content.LoaderOptions{
			Logger:    u.log,
			Site:      site,
			SSMParam:  param,
			S3Bucket:  u.conf.ContentS3Bucket,
			S3Prefix:  path.Join(u.conf.ContentS3Prefix, site.Label()),
			SSMClient: u.ssm,
			S3Client:  u.s3,
			Verifier:  u.verifier,
		})
		if err != nil {
			return xerrors.Wrapf(err, "%s content loader", site.Label())
		}

		mgr := u.sites.Manager(site)
		if err := loader.Refresh(ctx, mgr); err != nil {
			u.log.Error(ctx, err, "initial content load failed", "site", site.Label())
		} else {
			reportContent(u.metrics, mgr)
			u.log.Info(ctx, "loaded content bundle", "site", site.Label(),
				"content_version", mgr.ContentVersion(), "content_hash", mgr.ContentHash())
		}

		w := content.NewWatcher(content.WatcherOptions{
			Logger:  u.log,
			Loader:  loader,
			Manager: mgr,
			Metrics: u.metrics,
			OnSwap:  func(string, string) { reportContent(u.metrics, mgr) },
		})
		g.Go(func() error { return w.Run(ctx) })
	}
	return nil
}

// reportContent publishes what mgr is serving.
func reportContent(m *metrics.ServerMetrics, mgr *content.Manager) {
	if _, ok := mgr.Get(); !ok {
		return
	}
	site := mgr.Site().Label()
	m.SetContentSource(site, string(mgr.Source()))
	m.SetContentBundle(site, mgr.ContentHash())
	if at := mgr.LoadedAt(); !at.IsZero() {
		m.SetContentLoadedTimestamp(site, at)
	}
}

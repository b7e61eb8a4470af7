package sitehandler

import (
	"path"
	"strings"
)

// fingerprinted build output; safe to cache for a year
var assetExt = map[string]bool{
	".css": true, ".js": true, ".mjs": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true, ".svg": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// cachePolicy picks the Cache-Control value for a served file. Extensionless
// names are treated as pages.
func (o *Options) cachePolicy(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == "" || ext == ".html":
		return o.HTMLCacheControl
	case assetExt[ext]:
		return o.AssetCacheControl
	}
	return o.OtherCacheControl
}

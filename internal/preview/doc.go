// Package preview turns a secret-bearing link into a draft preview session.
//
// A visitor who follows a link carrying the preview secret in a query
// parameter hits the [Gateway] middleware. The gateway makes one internal call
// to the [ActivationEndpoint], which opens a bypass session with the draft
// mode runtime and answers with the session cookie. The gateway copies that
// cookie, plus a metadata cookie naming the Working site version, into a clone
// of the original request and hands it to the rest of the pipeline, so the
// very first response is already rendered from draft content.
//
// Every failure along the way degrades to serving the published site; nothing
// in this package ever fails the visitor's request.
//
// Downstream handlers call [Resolver.SiteVersion] to learn which snapshot a
// request may see.
package preview

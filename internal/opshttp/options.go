package opshttp

import (
	"net/http"

	"github.com/keithlinneman/draftsite/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Checker
	Readiness   health.Checker

	// Content reports loaded bundles per site version at /-/content.
	Content SitesStatus
}

// Package probe decides which sources a run can use. It inspects local
// state only: configured credentials, the PATH, and the bird CLI's login.
// It never calls a content source and it never fails.
package probe

import (
	"context"

	"last30days/bird"
	"last30days/research"
)

// Config carries the local signals the probe inspects.
type Config struct {
	OpenAIKey string
	BirdPath  string
	Disabled  map[research.Platform]bool
}

// SourceStatus is one source's capability verdict.
type SourceStatus struct {
	Usable bool
	Reason string // set when not usable
}

// Availability is the probe result handed to the pipeline. It is computed
// once per run; fetchers never re-inspect the environment.
type Availability struct {
	Reddit    SourceStatus
	X         SourceStatus
	Web       SourceStatus
	XUsername string
}

// For returns the status for platform p.
func (a Availability) For(p research.Platform) SourceStatus {
	switch p {
	case research.PlatformReddit:
		return a.Reddit
	case research.PlatformX:
		return a.X
	case research.PlatformWeb:
		return a.Web
	}
	return SourceStatus{}
}

// AnyUsable reports whether at least one source can run.
func (a Availability) AnyUsable() bool {
	return a.Reddit.Usable || a.X.Usable || a.Web.Usable
}

// Run probes all three sources. Reddit needs an OpenAI API key, X needs an
// installed and authenticated bird CLI, web is keyless and usable unless
// disabled.
func Run(ctx context.Context, cfg Config, runner bird.Runner) Availability {
	var a Availability

	switch {
	case cfg.Disabled[research.PlatformReddit]:
		a.Reddit = SourceStatus{Reason: "disabled by configuration"}
	case cfg.OpenAIKey == "":
		a.Reddit = SourceStatus{Reason: "no OpenAI API key configured"}
	default:
		a.Reddit = SourceStatus{Usable: true}
	}

	if cfg.Disabled[research.PlatformX] {
		a.X = SourceStatus{Reason: "disabled by configuration"}
	} else {
		status := bird.CheckStatus(ctx, runner, cfg.BirdPath)
		switch {
		case !status.Installed:
			a.X = SourceStatus{Reason: "bird CLI not installed"}
		case !status.Authenticated:
			a.X = SourceStatus{Reason: "bird CLI not authenticated"}
		default:
			a.X = SourceStatus{Usable: true}
			a.XUsername = status.Username
		}
	}

	if cfg.Disabled[research.PlatformWeb] {
		a.Web = SourceStatus{Reason: "disabled by configuration"}
	} else {
		a.Web = SourceStatus{Usable: true}
	}

	return a
}

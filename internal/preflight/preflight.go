package preflight

import (
	"context"
	"strings"

	"artdedup/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results never block startup.
	Optional bool
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if strings.TrimSpace(cfg.Paths.ImageDir) != "" {
		image := CheckDirectoryAccess("Image directory", cfg.Paths.ImageDir)
		image.Optional = true
		results = append(results, image)
	}
	results = append(results, CheckDatabase(ctx, cfg.DatabasePath()))
	if strings.TrimSpace(cfg.Paths.APIBind) != "" {
		results = append(results, CheckBindAddress(cfg.Paths.APIBind))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

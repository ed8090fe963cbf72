// Package cloudsync pushes and pulls the local collections against a remote
// JSON document store over HTTP. The store's exact hostname is not known in
// advance, so every request probes an ordered list of candidate base URLs.
package cloudsync

import (
	"fmt"

	"github.com/maruel/pinn/internal/models"
)

// regionCandidates is the ordered list of region segments tried when the
// store uses region-qualified hostnames. Most projects live in the first one.
var regionCandidates = []string{
	"us-central1",
	"europe-west1",
	"asia-southeast1",
}

// ResolveCandidates returns the ordered base URLs to probe for a project.
// Region-qualified hostnames come first, then the legacy hostname form. Pure
// function of the config; the retry policy lives in Client.
func ResolveCandidates(cfg models.CloudConfig) []string {
	if cfg.ProjectID == "" {
		return nil
	}
	out := make([]string, 0, len(regionCandidates)+1)
	for _, region := range regionCandidates {
		out = append(out, fmt.Sprintf("https://%s-default-rtdb.%s.firebasedatabase.app", cfg.ProjectID, region))
	}
	out = append(out, fmt.Sprintf("https://%s.firebaseio.com", cfg.ProjectID))
	return out
}

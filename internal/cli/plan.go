package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/galley/internal/ports/primary"
)

// loadPlan reads a manifest plan file:
//
//	delivery_date: 2026-10-15
//	branches:
//	  - slug: north
//	    name: North Kitchen
//	    items:
//	      - name: Basmati Rice
//	        ordered_qty: 50
func loadPlan(path string) (primary.CreateManifestRequest, error) {
	var req primary.CreateManifestRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read plan: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if len(req.Branches) == 0 {
		return req, fmt.Errorf("plan %s lists no branches", path)
	}
	return req, nil
}

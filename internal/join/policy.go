package join

import (
	"fmt"
	"strings"

	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/modsync"
)

// Policy decides whether mod sync failures stop a join. The zero Policy
// never does.
type Policy struct {
	// RequiredMods are mod IDs that must be installed for any server.
	RequiredMods []string
	// HonorManifestRequired makes entries the manifest marks required binding.
	HonorManifestRequired bool
	// AbortOnAnyFailure treats every manifest entry as required.
	AbortOnAnyFailure bool
}

// Check returns an error wrapping ErrRequiredModMissing when outcome leaves
// a mod the policy requires uninstalled.
func (p Policy) Check(entries []manifest.Entry, outcome *modsync.Outcome) error {
	if outcome == nil {
		outcome = &modsync.Outcome{}
	}

	var missing []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}

	inManifest := make(map[string]bool, len(entries))
	for _, e := range entries {
		inManifest[e.ModID] = true
	}

	for _, id := range p.RequiredMods {
		if _, failed := outcome.Failed(id); failed || !inManifest[id] {
			add(id)
		}
	}

	for _, e := range entries {
		if !p.AbortOnAnyFailure && !(p.HonorManifestRequired && e.Required) {
			continue
		}
		if _, failed := outcome.Failed(e.ModID); failed {
			add(e.ModID)
		}
	}

	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRequiredModMissing, strings.Join(missing, ", "))
}

package modsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sealantern/quickjoin/internal/cache"
	"github.com/sealantern/quickjoin/internal/ledger"
)

// Check verifies that the files recorded in dir's ledger still hold the
// content they had when they were installed. Returns Clean=true if
// everything matches. Files not in the ledger are ignored.
func Check(ctx context.Context, dir string) (*CheckResult, error) {
	led, err := ledger.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	result := &CheckResult{Clean: true}
	for _, m := range led.Mods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		actual, err := cache.HashFile(filepath.Join(dir, m.FileName))
		if err != nil {
			if os.IsNotExist(err) {
				result.Missing = append(result.Missing, m.FileName)
				result.Clean = false
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", m.FileName, err)
		}

		if actual != m.SHA256 {
			result.Drifted = append(result.Drifted, DriftEntry{
				FileName: m.FileName,
				Expected: m.SHA256,
				Actual:   actual,
			})
			result.Clean = false
			continue
		}
		result.Valid = append(result.Valid, m.FileName)
	}

	return result, nil
}

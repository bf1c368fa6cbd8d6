package join

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/modsync"
)

func outcomeFailing(ids ...string) *modsync.Outcome {
	o := &modsync.Outcome{}
	for _, id := range ids {
		o.Failures = append(o.Failures, modsync.Failure{ModID: id, Kind: modsync.KindDownloadFailed, Err: errors.New("x")})
	}
	return o
}

func TestPolicyZeroValueNeverFails(t *testing.T) {
	entries := []manifest.Entry{{ModID: "a", Required: true}}
	assert.NoError(t, Policy{}.Check(entries, outcomeFailing("a")))
}

func TestPolicyRequiredModAbsentFromManifest(t *testing.T) {
	err := Policy{RequiredMods: []string{"core"}}.Check(nil, outcomeFailing())
	require.ErrorIs(t, err, ErrRequiredModMissing)
	assert.Contains(t, err.Error(), "core")
}

func TestPolicyRequiredModInstalled(t *testing.T) {
	entries := []manifest.Entry{{ModID: "core"}, {ModID: "extra"}}
	assert.NoError(t, Policy{RequiredMods: []string{"core"}}.Check(entries, outcomeFailing("extra")))
}

func TestPolicyHonorsManifestRequired(t *testing.T) {
	entries := []manifest.Entry{{ModID: "a", Required: true}, {ModID: "b"}}

	p := Policy{HonorManifestRequired: true}
	assert.NoError(t, p.Check(entries, outcomeFailing("b")))

	err := p.Check(entries, outcomeFailing("a", "b"))
	require.ErrorIs(t, err, ErrRequiredModMissing)
	assert.NotContains(t, err.Error(), "b")
}

func TestPolicyAbortOnAnyFailure(t *testing.T) {
	entries := []manifest.Entry{{ModID: "a"}, {ModID: "b"}}
	p := Policy{AbortOnAnyFailure: true}

	assert.NoError(t, p.Check(entries, outcomeFailing()))
	err := p.Check(entries, outcomeFailing("b"))
	require.ErrorIs(t, err, ErrRequiredModMissing)
}

func TestPolicyReportsEachModOnce(t *testing.T) {
	entries := []manifest.Entry{{ModID: "a", Required: true}}
	p := Policy{RequiredMods: []string{"a"}, HonorManifestRequired: true, AbortOnAnyFailure: true}

	err := p.Check(entries, outcomeFailing("a"))
	require.Error(t, err)
	assert.Equal(t, "required mod missing: a", err.Error())
}

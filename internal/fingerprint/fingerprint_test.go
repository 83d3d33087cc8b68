package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicore/arbiter/internal/types"
)

func sampleProposal(createdAt time.Time) types.ActionProposal {
	return types.ActionProposal{
		ActionType: "data_access",
		Content:    map[string]interface{}{"table": "visits", "rows": 120},
		Context:    map[string]interface{}{"requester": "dr_adams", "urgency": 0.4},
		Priority:   0.5,
		CreatedAt:  createdAt,
	}
}

func TestGenerate(t *testing.T) {
	g := NewGenerator()

	t.Run("identical inputs produce identical fingerprints", func(t *testing.T) {
		proposal := sampleProposal(time.Now())
		a, err := g.Generate(proposal, nil, 0.1234, 0.5)
		require.NoError(t, err)
		b, err := g.Generate(proposal, nil, 0.1234, 0.5)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 64, "sha-256 hex")
	})

	t.Run("wall-clock time does not enter the hash", func(t *testing.T) {
		a, err := g.Generate(sampleProposal(time.Now()), nil, 0.1, 0.5)
		require.NoError(t, err)
		b, err := g.Generate(sampleProposal(time.Now().Add(48*time.Hour)), nil, 0.1, 0.5)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("differing risk score changes the fingerprint", func(t *testing.T) {
		proposal := sampleProposal(time.Time{})
		a, err := g.Generate(proposal, nil, 0.1, 0.5)
		require.NoError(t, err)
		b, err := g.Generate(proposal, nil, 0.2, 0.5)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("jitter below four decimals is collapsed", func(t *testing.T) {
		proposal := sampleProposal(time.Time{})
		a, err := g.Generate(proposal, nil, 0.12341, 0.5)
		require.NoError(t, err)
		b, err := g.Generate(proposal, nil, 0.123449, 0.5)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("evaluation context participates in the hash", func(t *testing.T) {
		proposal := sampleProposal(time.Time{})
		a, err := g.Generate(proposal, nil, 0.1, 0.5)
		require.NoError(t, err)
		b, err := g.Generate(proposal, map[string]interface{}{"shift": "night"}, 0.1, 0.5)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("nil and empty maps hash identically", func(t *testing.T) {
		withNil := types.ActionProposal{ActionType: "ping"}
		withEmpty := types.ActionProposal{
			ActionType: "ping",
			Content:    map[string]interface{}{},
			Context:    map[string]interface{}{},
		}
		a, err := g.Generate(withNil, nil, 0, 0.5)
		require.NoError(t, err)
		b, err := g.Generate(withEmpty, nil, 0, 0.5)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestSignature(t *testing.T) {
	t.Run("context dimensions are sorted", func(t *testing.T) {
		proposal := types.ActionProposal{
			ActionType: "data_access",
			Context:    map[string]interface{}{"zone": "b", "area": "a"},
			Priority:   0.25,
		}
		sig := Signature(proposal, nil)
		assert.Equal(t, "area:a|zone:b|priority:0.2500|action:data_access", sig)
	})

	t.Run("evaluation context overrides proposal context", func(t *testing.T) {
		proposal := types.ActionProposal{
			ActionType: "data_access",
			Context:    map[string]interface{}{"zone": "b"},
		}
		sig := Signature(proposal, map[string]interface{}{"zone": "c"})
		assert.Equal(t, "zone:c|priority:0.0000|action:data_access", sig)
	})
}

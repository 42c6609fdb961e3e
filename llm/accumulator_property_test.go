package llm

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Any split of a valid JSON arguments string, fed through Append, must come
// back out of Complete as parseable JSON equal to the original.
func TestProperty_AccumulatorFragmentation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		obj := rapid.MapOf(rapid.StringMatching(`[a-zA-Z_]{1,8}`), rapid.String()).Draw(rt, "args")
		encoded, err := json.Marshal(obj)
		require.NoError(rt, err)
		s := string(encoded)

		n := rapid.IntRange(1, 24).Draw(rt, "pieces")
		cuts := rapid.SliceOfN(rapid.IntRange(0, len(s)), n-1, n-1).Draw(rt, "cuts")
		sort.Ints(cuts)

		acc := NewToolCallAccumulator("property")
		require.NoError(rt, acc.Open(0, "", "fn"))
		prev := 0
		for _, c := range cuts {
			require.NoError(rt, acc.Append(0, s[prev:c]))
			prev = c
		}
		require.NoError(rt, acc.Append(0, s[prev:]))

		calls, err := acc.Complete()
		require.NoError(rt, err)
		require.Len(rt, calls, 1)

		var back map[string]string
		require.NoError(rt, json.Unmarshal([]byte(calls[0].Arguments), &back))
		require.Equal(rt, len(obj), len(back))
		for k, v := range obj {
			require.Equal(rt, v, back[k])
		}
	})
}

// Interleaved fragments for several calls still reassemble per call, and the
// calls come out in the order they were opened.
func TestProperty_AccumulatorInterleaving(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 5).Draw(rt, "calls")
		payloads := make([]string, k)
		offsets := make([]int, k)
		acc := NewToolCallAccumulator("property")
		for i := 0; i < k; i++ {
			v := rapid.IntRange(-1000, 1000).Draw(rt, "value")
			b, _ := json.Marshal(map[string]int{"n": v, "i": i})
			payloads[i] = string(b)
			require.NoError(rt, acc.Open(i, "", "fn"))
		}

		for {
			open := make([]int, 0, k)
			for i := range payloads {
				if offsets[i] < len(payloads[i]) {
					open = append(open, i)
				}
			}
			if len(open) == 0 {
				break
			}
			i := open[rapid.IntRange(0, len(open)-1).Draw(rt, "which")]
			step := rapid.IntRange(1, len(payloads[i])-offsets[i]).Draw(rt, "step")
			require.NoError(rt, acc.Append(i, payloads[i][offsets[i]:offsets[i]+step]))
			offsets[i] += step
		}

		calls, err := acc.Complete()
		require.NoError(rt, err)
		require.Len(rt, calls, k)
		for i, c := range calls {
			require.Equal(rt, payloads[i], c.Arguments)
		}
	})
}

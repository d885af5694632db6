package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := map[string]int{
		"":          0,
		"   ":       0,
		"abcd":      1,
		"abcde":     2,
		"héllo wor": 3,
	}
	for in, want := range cases {
		if got := EstimateTokens(in); got != want {
			t.Fatalf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	if got := StripCodeFence(in); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
	if got := StripCodeFence(` {"a":1} `); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}

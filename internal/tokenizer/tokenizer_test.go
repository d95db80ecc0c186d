package tokenizer

import "testing"

func TestCount(t *testing.T) {
	if got := Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if got := Count("hello world"); got < 1 {
		t.Errorf("Count(\"hello world\") = %d, want >= 1", got)
	}
	short := Count("hi")
	long := Count("a considerably longer sentence with many more words in it")
	if long <= short {
		t.Errorf("longer text should count more tokens: short=%d long=%d", short, long)
	}
}

func TestEstimate(t *testing.T) {
	u := Estimate("what is two plus two", "four")
	if u.InputTokens < 1 || u.OutputTokens < 1 {
		t.Errorf("usage = %+v, want positive counts", u)
	}
}

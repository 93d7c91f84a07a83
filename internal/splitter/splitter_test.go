package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSplitEmptyInput(t *testing.T) {
	if got := Split("", 500); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := Split("   \n\n  \t ", 500); got != nil {
		t.Fatalf("Split(whitespace only) = %v, want nil", got)
	}
}

func TestSplitPreservesContentAndOrder(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs.\n\n" +
		"Sphinx of black quartz, judge my vow! " +
		"How vexingly quick daft zebras jump?\n\n" +
		"The five boxing wizards jump quickly."

	chunks := Split(text, 120)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, c := range chunks {
		if strings.TrimSpace(c) == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if n := utf8.RuneCountInString(c); n > 120 {
			t.Fatalf("chunk %d has %d runes, exceeds limit", i, n)
		}
	}

	got := stripWhitespace(strings.Join(chunks, " "))
	want := stripWhitespace(text)
	if got != want {
		t.Fatalf("reconstructed content mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestSplitThreeParagraphDocument(t *testing.T) {
	sentence := "This sentence pads the paragraph with ordinary prose until it is long enough. "
	paragraph := strings.TrimSpace(strings.Repeat(sentence, 10)) // ~800 chars
	text := paragraph + "\n\n" + paragraph + "\n\n" + paragraph

	chunks := Split(text, 1000)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if stripWhitespace(strings.Join(chunks, " ")) != stripWhitespace(text) {
		t.Fatal("concatenated chunks do not reconstruct the source text")
	}
}

func TestSplitOversizedSentenceFallsBackToWords(t *testing.T) {
	words := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		words = append(words, "lexicon")
	}
	text := strings.Join(words, " ") + "." // one 300+ char "sentence", no inner punctuation

	chunks := Split(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized sentence to be split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 50 {
			t.Fatalf("chunk %d has %d runes, exceeds limit", i, n)
		}
	}
	if stripWhitespace(strings.Join(chunks, " ")) != stripWhitespace(text) {
		t.Fatal("word-split chunks do not reconstruct the source text")
	}
}

func TestSplitKeepsUnsplittableWordIntact(t *testing.T) {
	long := strings.Repeat("x", 30)
	chunks := Split("tiny "+long+" tail.", 10)
	found := false
	for _, c := range chunks {
		if strings.Contains(c, long) {
			found = true
		}
	}
	if !found {
		t.Fatalf("long word was broken apart: %v", chunks)
	}
}

func TestSplitNoSpuriousSplitting(t *testing.T) {
	text := "First short sentence. Second short sentence."
	chunks := Split(text, 5000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1: %v", len(chunks), chunks)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon zeta!\n\nEta theta iota? Kappa lambda mu."
	a := Split(text, 40)
	b := Split(text, 40)
	if len(a) != len(b) {
		t.Fatalf("nondeterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs: %q vs %q", i, a[i], b[i])
		}
	}
}

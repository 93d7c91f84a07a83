// Package splitter segments extracted document text into bounded-size,
// semantically coherent chunks.
package splitter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
	sentenceRe  = regexp.MustCompile(`([^.!?]*[.!?]+)\s+`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Split segments text into chunks of at most maxChunkSize runes while
// preserving reading order. It packs greedily along a paragraph → sentence →
// word hierarchy: sentences accumulate into a chunk until the next one would
// overflow, a sentence longer than the limit is packed word by word, and a
// single word longer than the limit is kept intact rather than cut mid-word.
// A blank-line marker is carried between paragraphs that share a chunk so the
// paragraph boundary survives segmentation. Empty input yields no chunks.
func Split(text string, maxChunkSize int) []string {
	if text == "" || maxChunkSize <= 0 {
		return nil
	}

	paragraphs := paragraphRe.Split(text, -1)
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			currentLen = 0
		}
	}

	for _, paragraph := range paragraphs {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}

		for _, sentence := range splitSentences(paragraph) {
			sentenceLen := utf8.RuneCountInString(sentence)

			// A sentence that cannot fit in any chunk is packed word by word.
			if sentenceLen > maxChunkSize {
				flush()

				words := spaceRe.Split(sentence, -1)
				var wordChunk []string
				wordChunkLen := 0
				for _, word := range words {
					if word == "" {
						continue
					}
					wordLen := utf8.RuneCountInString(word)
					if wordChunkLen+wordLen+1 > maxChunkSize && len(wordChunk) > 0 {
						chunks = append(chunks, strings.Join(wordChunk, " "))
						wordChunk = nil
						wordChunkLen = 0
					}
					wordChunk = append(wordChunk, word)
					wordChunkLen += wordLen + 1
				}
				if len(wordChunk) > 0 {
					chunks = append(chunks, strings.Join(wordChunk, " "))
				}
				continue
			}

			if currentLen+sentenceLen+1 > maxChunkSize && len(current) > 0 {
				flush()
			}
			current = append(current, sentence)
			currentLen += sentenceLen + 1
		}

		// Keep a paragraph-boundary signal if it fits, otherwise start fresh.
		if len(current) > 0 && currentLen+2 <= maxChunkSize {
			current = append(current, "\n\n")
			currentLen += 2
		} else {
			flush()
		}
	}
	flush()

	out := chunks[:0]
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splitSentences cuts a paragraph at punctuation-terminated boundaries
// (., ! or ? followed by whitespace), keeping the terminators.
func splitSentences(paragraph string) []string {
	paragraph = strings.TrimSpace(paragraph)
	if paragraph == "" {
		return nil
	}
	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringSubmatchIndex(paragraph, -1) {
		sentences = append(sentences, strings.TrimSpace(paragraph[loc[2]:loc[3]]))
		last = loc[1]
	}
	if rest := strings.TrimSpace(paragraph[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

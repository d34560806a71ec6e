package summarize

import (
	"context"
	"notes-pipeline/internal/stages"
	"sort"
	"strings"
	"unicode"
)

// LocalSummarizer picks the highest scoring sentences of the source text.
// Output is deterministic for a given input and length.
type LocalSummarizer struct{}

var _ stages.Summarizer = LocalSummarizer{}

func (LocalSummarizer) Summarize(ctx context.Context, text string, opts stages.SummaryOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &stages.SummarizationError{Err: stages.ErrEmptyInput}
	}
	if err := ctx.Err(); err != nil {
		return "", &stages.SummarizationError{Err: err}
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", &stages.SummarizationError{Err: stages.ErrEmptyInput}
	}

	freq := termFrequencies(sentences)
	type scored struct {
		idx   int
		score float64
		words int
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		words := tokenize(s)
		var total float64
		for _, w := range words {
			total += float64(freq[w])
		}
		score := 0.0
		if len(words) > 0 {
			score = total / float64(len(words))
		}
		ranked[i] = scored{idx: i, score: score, words: len(strings.Fields(s))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	budget := WordBudget(opts.Length)
	used := 0
	var picked []int
	for _, r := range ranked {
		if used > 0 && used+r.words > budget {
			continue
		}
		picked = append(picked, r.idx)
		used += r.words
	}
	sort.Ints(picked)

	lines := make([]string, len(picked))
	for i, idx := range picked {
		lines[i] = sentences[idx]
	}
	return strings.Join(lines, "\n"), nil
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}

func termFrequencies(sentences []string) map[string]int {
	freq := make(map[string]int)
	for _, s := range sentences {
		for _, w := range tokenize(s) {
			freq[w]++
		}
	}
	return freq
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if len(f) > 2 && !stopWords[f] {
			words = append(words, f)
		}
	}
	return words
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true, "his": true,
	"how": true, "its": true, "may": true, "who": true, "did": true, "this": true,
	"that": true, "with": true, "from": true, "they": true, "have": true, "were": true,
	"been": true, "their": true, "which": true, "will": true, "there": true, "into": true,
	"than": true, "then": true, "them": true, "these": true, "those": true, "also": true,
}

package moderation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// Strategy identifies which matching strategy produced a curse detection.
type Strategy string

const (
	StrategyExact     Strategy = "exact"
	StrategyLeetspeak Strategy = "leetspeak"
	StrategyDespaced  Strategy = "despaced"
	StrategyFuzzy     Strategy = "fuzzy"
)

// fuzzyMinSpanRatio guards the fuzzy strategy against short incidental
// matches: a match only counts when its span covers at least this share
// of the term's length.
const fuzzyMinSpanRatio = 0.7

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// TermScanner matches banned terms in message text. CurseDetector is the
// default implementation; stricter matchers can replace it without
// touching the pipeline.
type TermScanner interface {
	Scan(content string, terms []string) (string, Strategy)
}

// CurseDetector matches banned terms in message text. Strategies run in a
// fixed order and the first hit wins; later strategies exist to defeat
// progressively heavier obfuscation.
type CurseDetector struct {
	normalizer *Normalizer
	regexCache map[string]*regexp.Regexp
	mu         sync.RWMutex
}

// NewCurseDetector creates a detector with an empty pattern cache.
func NewCurseDetector(normalizer *Normalizer) *CurseDetector {
	return &CurseDetector{
		normalizer: normalizer,
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// Scan checks content against the banned terms and returns the matched
// term (or the original obfuscated token when one can be recovered) along
// with the strategy that found it. An empty term means no match; an empty
// term list always yields no match.
func (d *CurseDetector) Scan(content string, terms []string) (string, Strategy) {
	if content == "" || len(terms) == 0 {
		return "", ""
	}

	folded := d.normalizer.Fold(content)

	termSet := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		termSet[term] = struct{}{}
	}

	// Strategy 1: exact tokenization
	rawTokens := wordPattern.FindAllString(folded, -1)
	for _, token := range rawTokens {
		if _, ok := termSet[token]; ok {
			return token, StrategyExact
		}
	}

	// Strategy 2: leetspeak-normalized tokenization. Report the original
	// token when token positions line up, else the normalized form.
	leetTokens := wordPattern.FindAllString(d.normalizer.Leetspeak(folded), -1)
	for i, token := range leetTokens {
		if _, ok := termSet[token]; ok {
			if len(leetTokens) == len(rawTokens) {
				return rawTokens[i], StrategyLeetspeak
			}
			return token, StrategyLeetspeak
		}
	}

	// Strategy 3: despaced containment
	despaced := d.normalizer.Despace(folded)
	for _, term := range terms {
		if strings.Contains(despaced, term) {
			return term, StrategyDespaced
		}
	}

	// Strategy 4: fuzzy pattern anchored on first/last character
	for _, term := range terms {
		if len(term) <= 3 {
			continue
		}
		pattern := d.fuzzyPattern(term)
		if pattern == nil {
			continue
		}
		for _, match := range pattern.FindAllString(folded, -1) {
			if float64(len(match)) >= float64(len(term))*fuzzyMinSpanRatio {
				return term, StrategyFuzzy
			}
		}
	}

	return "", ""
}

// fuzzyPattern gets or compiles the permissive pattern for a term: its
// first and last characters with a bounded, lazily-matched interior.
// Characters are sliced as runes so multibyte terms stay valid patterns;
// a term that still fails to compile is cached as nil and skipped.
func (d *CurseDetector) fuzzyPattern(term string) *regexp.Regexp {
	d.mu.RLock()
	if cached, exists := d.regexCache[term]; exists {
		d.mu.RUnlock()
		return cached
	}
	d.mu.RUnlock()

	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)

	pattern := fmt.Sprintf("%s.{1,%d}?%s",
		regexp.QuoteMeta(string(first)),
		len(term)-2,
		regexp.QuoteMeta(string(last)))
	// Compile returns nil on failure, which the cache keeps so a bad
	// term is only attempted once
	regex, _ := regexp.Compile(pattern)

	d.mu.Lock()
	d.regexCache[term] = regex
	d.mu.Unlock()

	return regex
}

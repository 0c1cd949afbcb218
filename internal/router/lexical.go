package router

import (
	"math"
	"strings"
	"unicode"
)

// lexicalScorer scores query terms against per-handler keyword corpora:
// IDF-weighted term overlap normalized into [0, 1] by the query's total
// IDF mass, so off-topic terms dilute the score and rare matched terms
// dominate common ones.
type lexicalScorer struct {
	// terms[handler] is the set of corpus terms for that handler.
	terms map[string]map[string]bool

	// docFreq[term] is the number of handler corpora containing the term.
	docFreq map[string]int

	corpusCount int
}

func newLexicalScorer() *lexicalScorer {
	return &lexicalScorer{
		terms:   make(map[string]map[string]bool),
		docFreq: make(map[string]int),
	}
}

// addCorpus indexes one handler's keyword corpus.
func (s *lexicalScorer) addCorpus(handler string, keywords []string) {
	set := make(map[string]bool)
	for _, kw := range keywords {
		for _, term := range tokenize(kw) {
			set[term] = true
		}
	}
	if len(set) == 0 {
		return
	}

	s.terms[handler] = set
	for term := range set {
		s.docFreq[term]++
	}
	s.corpusCount++
}

// score returns the lexical relevance of the query to the handler's
// corpus, in [0, 1]. Unknown handlers and empty queries score 0.
func (s *lexicalScorer) score(handler, query string) float64 {
	set, ok := s.terms[handler]
	if !ok {
		return 0
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return 0
	}

	var matched, total float64
	for _, term := range terms {
		weight := s.idf(term)
		total += weight
		if set[term] {
			matched += weight
		}
	}

	if total == 0 {
		return 0
	}
	return matched / total
}

// idf weights rare terms above ones that appear in every corpus. Terms
// seen in no corpus get the maximum weight so that off-topic queries
// dilute the score.
func (s *lexicalScorer) idf(term string) float64 {
	df := s.docFreq[term]
	return math.Log(1 + float64(s.corpusCount+1)/float64(df+1))
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Package relevance ranks ingested documents against a query using TF-IDF
// vectors and cosine similarity.
//
// Each document's vector is computed with the IDF values in effect when it was
// ingested and is never recomputed afterwards. Queries use the current IDF
// values. Index is not safe for concurrent mutation; callers must serialize
// AddDocument against every other call.
package relevance

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"docchat/internal/domain"
	"docchat/internal/tokenizer"
)

// Index holds the corpus and its document frequencies.
type Index struct {
	documents         []domain.Document
	documentFrequency map[string]int
	newID             func() string
	now               func() time.Time
}

// Option customizes an Index.
type Option func(*Index)

// WithIDGenerator overrides how document IDs are assigned.
func WithIDGenerator(fn func() string) Option {
	return func(ix *Index) { ix.newID = fn }
}

// WithClock overrides the ingestion timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(ix *Index) { ix.now = fn }
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		documentFrequency: make(map[string]int),
		newID:             uuid.NewString,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// AddDocument tokenizes content, updates document frequencies and stores the
// document with its TF-IDF vector.
func (ix *Index) AddDocument(content, filename string) domain.Document {
	tf := termFrequency(tokenizer.Tokenize(content))
	for term := range tf {
		ix.documentFrequency[term]++
	}

	// N counts the document being added.
	n := len(ix.documents) + 1
	vec := make(map[string]float64, len(tf))
	for term, f := range tf {
		vec[term] = f * ix.idf(term, n)
	}

	doc := domain.Document{
		ID:         ix.newID(),
		Content:    content,
		Filename:   filename,
		IngestedAt: ix.now(),
		TermVector: vec,
	}
	ix.documents = append(ix.documents, doc)
	return doc
}

// FindMostRelevant returns every stored document ordered by similarity to the
// query, most similar first. Equal scores keep insertion order.
func (ix *Index) FindMostRelevant(query string) []domain.Document {
	ranked := ix.Rank(query)
	out := make([]domain.Document, len(ranked))
	for i, r := range ranked {
		out[i] = r.Document
	}
	return out
}

// Rank is FindMostRelevant with the cosine scores kept.
func (ix *Index) Rank(query string) []domain.SearchResult {
	qvec := ix.queryVector(query)
	results := make([]domain.SearchResult, len(ix.documents))
	for i, doc := range ix.documents {
		results[i] = domain.SearchResult{Document: doc, Score: CosineSimilarity(qvec, doc.TermVector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// Len returns the number of ingested documents.
func (ix *Index) Len() int { return len(ix.documents) }

// Documents returns the corpus in insertion order.
func (ix *Index) Documents() []domain.Document {
	out := make([]domain.Document, len(ix.documents))
	copy(out, ix.documents)
	return out
}

// DocumentFrequency returns how many documents contain term.
func (ix *Index) DocumentFrequency(term string) int {
	return ix.documentFrequency[term]
}

func (ix *Index) queryVector(query string) map[string]float64 {
	tf := termFrequency(tokenizer.Tokenize(query))
	n := len(ix.documents)
	vec := make(map[string]float64, len(tf))
	for term, f := range tf {
		if _, known := ix.documentFrequency[term]; !known {
			continue
		}
		vec[term] = f * ix.idf(term, n)
	}
	return vec
}

// idf is the smoothed inverse document frequency; always > 0.
func (ix *Index) idf(term string, n int) float64 {
	df := float64(ix.documentFrequency[term])
	return math.Log((float64(n)+1)/(df+1)) + 1
}

// termFrequency maps each distinct token to its share of the token count.
func termFrequency(tokens []string) map[string]float64 {
	tf := make(map[string]float64)
	if len(tokens) == 0 {
		return tf
	}
	for _, tok := range tokens {
		tf[tok]++
	}
	total := float64(len(tokens))
	for term, count := range tf {
		tf[term] = count / total
	}
	return tf
}

// Package retrieval indexes a markdown document corpus and serves
// top-k lexical retrieval over it. The index is a TF-IDF vector space
// (unigrams and bigrams) built once at startup; retrieval is pure
// cosine scoring with no model calls, so results are deterministic.
package retrieval

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"askdb/internal/logging"
)

// Passage is a retrievable chunk of source document text.
type Passage struct {
	ID     string  // "{source}::chunk{index}"
	Text   string
	Source string
	Score  float64 // cosine relevance for the query that produced it
}

// Configuration errors. Both fail construction, not retrieval.
var (
	ErrNoCorpus    = fmt.Errorf("document corpus directory not found")
	ErrEmptyCorpus = fmt.Errorf("document corpus yielded no chunks")
)

const (
	defaultTopK  = 3
	maxVocabSize = 1000
)

// Retriever is a TF-IDF index over the corpus. Safe for concurrent use
// after construction; nothing is mutated post-build except the query
// cache, which is internally synchronized.
type Retriever struct {
	chunks []Passage
	vocab  map[string]int
	vecs   []map[int]float64 // l2-normalized tf-idf per chunk
	idf    []float64
	topK   int
	cache  *ttlcache.Cache[string, []Passage]
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK sets the default number of passages returned by Retrieve.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithCacheTTL sets how long query results stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Retriever) {
		if ttl > 0 {
			r.cache = ttlcache.New[string, []Passage](
				ttlcache.WithTTL[string, []Passage](ttl),
			)
		}
	}
}

// New loads every markdown file under docsDir, splits it into
// header-delimited chunks, and builds the TF-IDF index. A missing
// directory or an empty corpus is a configuration error and fails
// construction.
func New(docsDir string, opts ...Option) (*Retriever, error) {
	if _, err := os.Stat(docsDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCorpus, docsDir)
	}

	r := &Retriever{
		topK: defaultTopK,
		cache: ttlcache.New[string, []Passage](
			ttlcache.WithTTL[string, []Passage](5 * time.Minute),
		),
	}
	for _, opt := range opts {
		opt(r)
	}

	paths, err := filepath.Glob(filepath.Join(docsDir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}
		source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for idx, section := range splitSections(string(data)) {
			section = strings.TrimSpace(section)
			if section == "" {
				continue
			}
			r.chunks = append(r.chunks, Passage{
				ID:     fmt.Sprintf("%s::chunk%d", source, idx),
				Text:   section,
				Source: source,
			})
		}
	}

	if len(r.chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCorpus, docsDir)
	}

	r.buildIndex()
	logging.For(logging.CategoryRetrieval).Debugf("indexed %d chunks from %d documents, vocab=%d",
		len(r.chunks), len(paths), len(r.vocab))

	return r, nil
}

// Retrieve returns the k most relevant chunks for the query, ordered by
// descending cosine score with ties broken by original chunk order.
// k <= 0 uses the configured default.
func (r *Retriever) Retrieve(query string, k int) []Passage {
	if k <= 0 {
		k = r.topK
	}

	key := fmt.Sprintf("%d|%s", k, query)
	if item := r.cache.Get(key); item != nil {
		cached := item.Value()
		out := make([]Passage, len(cached))
		copy(out, cached)
		return out
	}

	qvec := r.vectorize(tokenize(query))

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(r.chunks))
	for i, vec := range r.vecs {
		ranked[i] = scored{idx: i, score: dot(qvec, vec)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	results := make([]Passage, 0, k)
	for _, s := range ranked[:k] {
		p := r.chunks[s.idx]
		p.Score = s.score
		results = append(results, p)
	}

	r.cache.Set(key, results, ttlcache.DefaultTTL)

	out := make([]Passage, len(results))
	copy(out, results)
	return out
}

// ChunkByID returns a specific chunk by its stable identifier.
func (r *Retriever) ChunkByID(id string) (Passage, bool) {
	for _, c := range r.chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Passage{}, false
}

// Len reports the number of indexed chunks.
func (r *Retriever) Len() int { return len(r.chunks) }

// ---- index construction ----

func (r *Retriever) buildIndex() {
	n := len(r.chunks)
	chunkTerms := make([][]string, n)
	totalCount := make(map[string]int)
	docFreq := make(map[string]int)

	for i, c := range r.chunks {
		terms := tokenize(c.Text)
		chunkTerms[i] = terms
		seen := make(map[string]bool)
		for _, t := range terms {
			totalCount[t]++
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}

	// Cap the vocabulary: keep the most frequent terms, ties broken
	// alphabetically so the index is reproducible.
	terms := make([]string, 0, len(totalCount))
	for t := range totalCount {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(a, b int) bool {
		if totalCount[terms[a]] != totalCount[terms[b]] {
			return totalCount[terms[a]] > totalCount[terms[b]]
		}
		return terms[a] < terms[b]
	})
	if len(terms) > maxVocabSize {
		terms = terms[:maxVocabSize]
	}

	r.vocab = make(map[string]int, len(terms))
	r.idf = make([]float64, len(terms))
	for i, t := range terms {
		r.vocab[t] = i
		r.idf[i] = math.Log(float64(1+n)/float64(1+docFreq[t])) + 1
	}

	r.vecs = make([]map[int]float64, n)
	for i, ts := range chunkTerms {
		r.vecs[i] = r.vectorize(ts)
	}
}

// vectorize builds an l2-normalized tf-idf vector over the vocabulary.
func (r *Retriever) vectorize(terms []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, t := range terms {
		if i, ok := r.vocab[t]; ok {
			vec[i]++
		}
	}
	var norm float64
	for i := range vec {
		vec[i] *= r.idf[i]
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// dot of two normalized sparse vectors is their cosine similarity.
func dot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for i, v := range a {
		sum += v * b[i]
	}
	return sum
}

// ---- text handling ----

var (
	reHeader = regexp.MustCompile(`^#{1,2}\s`)
	reToken  = regexp.MustCompile(`[a-z0-9_]{2,}`)
)

// splitSections splits document content at level-1 and level-2 header
// lines, keeping each header with the section it introduces.
func splitSections(content string) []string {
	lines := strings.Split(content, "\n")
	var sections []string
	var current []string
	for i, line := range lines {
		if i > 0 && reHeader.MatchString(line) {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0:0]
		}
		current = append(current, line)
	}
	return append(sections, strings.Join(current, "\n"))
}

// tokenize lowercases, drops stop words, and emits unigrams plus
// bigrams over the remaining tokens.
func tokenize(text string) []string {
	words := reToken.FindAllString(strings.ToLower(text), -1)
	kept := words[:0:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	terms := make([]string, 0, len(kept)*2)
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

var stopWords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"must": true, "shall": true, "can": true, "to": true, "of": true,
	"in": true, "for": true, "on": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "into": true, "through": true,
	"during": true, "before": true, "after": true, "and": true, "but": true,
	"or": true, "nor": true, "so": true, "if": true, "then": true,
	"else": true, "when": true, "where": true, "why": true, "how": true,
	"all": true, "each": true, "every": true, "both": true, "few": true,
	"more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "not": true, "only": true, "own": true, "same": true,
	"than": true, "too": true, "very": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "an": true,
	"we": true, "they": true, "their": true, "our": true, "your": true,
	"you": true, "he": true, "she": true, "his": true, "her": true,
	"what": true, "which": true, "who": true, "whom": true, "there": true,
	"here": true, "about": true, "also": true, "any": true, "because": true,
}

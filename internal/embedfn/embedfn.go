// Package embedfn implements a reference embed(config, texts) -> vectors
// function. The engine itself never calls a real model; it treats
// embedding as an external collaborator supplied by the host. This package
// exists so that tests, examples, and a host with no model backend of its
// own have something to call.
//
// The algorithm is a deterministic, hash-based bag-of-tokens-plus-n-grams
// scheme — no network, no model download.
package embedfn

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

// defaultBatchSize is used when Config.BatchSize is zero or negative; the
// configured value is otherwise coerced to at least 1.
const defaultBatchSize = 64

// BackendTag identifies this package as an embedding backend. When
// Config.Provider is set, it must match this tag or Embed fails
// UNKNOWN_MODEL rather than silently embedding against the wrong backend.
const BackendTag = "vpack-reference"

// Config configures a call to Embed.
type Config struct {
	// Model is the model identifier. Required.
	Model string
	// Dimensions, if non-zero, is asserted against the produced vector
	// length; a mismatch is a DIMENSION_MISMATCH error, not silent
	// truncation or padding.
	Dimensions int
	// Provider, if non-empty, must equal BackendTag; any other value means
	// the config was authored for a different backend and Embed fails
	// UNKNOWN_MODEL rather than embed against the wrong implementation.
	Provider string
	// BatchSize controls how many texts are embedded per internal batch.
	// Zero or negative coerces to defaultBatchSize.
	BatchSize int
	// MaxLength, if non-zero, truncates each text (in runes) before
	// embedding.
	MaxLength int
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.BatchSize
}

// referenceDimensions is this backend's native output width when Config
// does not pin one explicitly.
const referenceDimensions = 768

var (
	tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

	stopWords = map[string]bool{
		"func": true, "function": true, "def": true, "class": true,
		"return": true, "import": true, "const": true, "var": true,
		"let": true, "int": true, "string": true, "bool": true,
		"void": true, "true": true, "false": true, "nil": true,
		"null": true, "this": true, "self": true, "new": true,
	}
)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// Embed produces one vector per element of texts, in order. Model is
// required; an empty Config.Model is a construction error (UNKNOWN_MODEL).
func Embed(ctx context.Context, config Config, texts []string) ([][]float32, error) {
	if config.Model == "" {
		return nil, vpkerr.UnknownModel("embed config must specify a model")
	}
	if config.Provider != "" && config.Provider != BackendTag {
		return nil, vpkerr.UnknownModel(fmt.Sprintf("embed config requests provider %q, this backend is %q", config.Provider, BackendTag))
	}

	dims := config.Dimensions
	if dims == 0 {
		dims = referenceDimensions
	}

	out := make([][]float32, 0, len(texts))
	batch := config.batchSize()
	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, text := range texts[start:end] {
			vec, err := embedOne(text, dims, config.MaxLength)
			if err != nil {
				return nil, err
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

func embedOne(text string, dims, maxLength int) ([]float32, error) {
	if maxLength > 0 {
		runes := []rune(text)
		if len(runes) > maxLength {
			text = string(runes[:maxLength])
		}
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, dims), nil
	}

	vector := make([]float32, dims)

	for _, token := range filterStopWords(tokenize(trimmed)) {
		vector[hashToIndex(token, dims)] += tokenWeight
	}
	for _, ngram := range extractNgrams(normalizeForNgrams(trimmed), ngramSize) {
		vector[hashToIndex(ngram, dims)] += ngramWeight
	}

	vec := normalize(vector)
	if len(vec) != dims {
		return nil, vpkerr.DimensionMismatch(dims, len(vec))
	}
	return vec, nil
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !stopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}

// Identity returns a stable string identifying config for model-hash
// pinning purposes: "<model>@<dims>d" is sufficient since this reference
// backend has no external weights to hash.
func Identity(config Config) string {
	dims := config.Dimensions
	if dims == 0 {
		dims = referenceDimensions
	}
	return fmt.Sprintf("%s@%dd", config.Model, dims)
}

package searchindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// PlaceTokenizerName is the registered Bleve tokenizer for place text.
	PlaceTokenizerName = "place_tokenizer"

	// PlaceStopFilterName is the registered Bleve stop word filter.
	PlaceStopFilterName = "place_stop"

	// PlaceAnalyzerName is the analyzer applied to the content field.
	PlaceAnalyzerName = "place_analyzer"

	contentField = "content"
)

func init() {
	_ = registry.RegisterTokenizer(PlaceTokenizerName, placeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(PlaceStopFilterName, placeStopFilterConstructor)
}

// BleveIndex implements Index on Bleve v2.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ Index = (*BleveIndex)(nil)

type bleveDocument struct {
	Content string `json:"content"`
}

// validateBleveIntegrity checks index_meta.json of an existing index.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, bleve.ErrorIndexMetaCorrupt) ||
		strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// NewBleveIndex opens or creates a Bleve index at path.
// An empty path creates an in-memory index.
func NewBleveIndex(path string, cfg Config) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("search_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("search index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("search_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected"))
		}

		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		} else if isCorruptionError(err) {
			slog.Warn("search_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("search index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

func createIndexMapping(cfg Config) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomTokenizer("place_tokens", map[string]any{
		"type":       PlaceTokenizerName,
		"min_length": float64(newTokenizer(cfg).minLen),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add tokenizer: %w", err)
	}

	stopWords := make([]any, len(cfg.StopWords))
	for i, w := range cfg.StopWords {
		stopWords[i] = w
	}
	err = indexMapping.AddCustomTokenFilter("place_stops", map[string]any{
		"type":       PlaceStopFilterName,
		"stop_words": stopWords,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add stop filter: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(PlaceAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     "place_tokens",
		"token_filters": []string{"place_stops"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = PlaceAnalyzerName
	return indexMapping, nil
}

// Put adds or replaces documents in one batch.
func (b *BleveIndex) Put(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.key(), bleveDocument{Content: doc.Content()}); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.PlaceID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Delete removes documents by place id.
func (b *BleveIndex) Delete(ctx context.Context, placeIDs []int64) error {
	if len(placeIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range placeIDs {
		batch.Delete(Document{PlaceID: id}.key())
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Stats returns index statistics.
func (b *BleveIndex) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return Stats{}
	}
	count, _ := b.index.DocCount()
	return Stats{DocumentCount: int(count)}
}

// Close closes the index. Safe to call more than once.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func placeTokenizerConstructor(config map[string]any, cache *registry.Cache) (analysis.Tokenizer, error) {
	minLen := 1
	if v, ok := config["min_length"].(float64); ok && v > 1 {
		minLen = int(v)
	}
	return &blevePlaceTokenizer{minLen: minLen}, nil
}

// blevePlaceTokenizer runs Tokenize inside Bleve's analysis chain.
// Folding changes byte lengths, so offsets are token ordinals rather
// than positions in the input.
type blevePlaceTokenizer struct {
	minLen int
}

func (t *blevePlaceTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := Tokenize(string(input), t.minLen)

	stream := make(analysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    i,
			End:      i + 1,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}

func placeStopFilterConstructor(config map[string]any, cache *registry.Cache) (analysis.TokenFilter, error) {
	var words []string
	if list, ok := config["stop_words"].([]any); ok {
		for _, w := range list {
			if s, ok := w.(string); ok {
				words = append(words, s)
			}
		}
	}
	return &blevePlaceStopFilter{stopWords: BuildStopWordMap(words)}, nil
}

type blevePlaceStopFilter struct {
	stopWords map[string]struct{}
}

func (f *blevePlaceStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

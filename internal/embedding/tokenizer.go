package embedding

import (
	"hash/fnv"
	"strings"
)

// BERT-style special token ids and the id space hashed words map into.
const (
	clsTokenID = 101
	sepTokenID = 102
	vocabSize  = 30000

	defaultMaxTokens = 256
)

// Tokenizer produces the three BERT input slices (input_ids,
// attention_mask, token_type_ids) for a text.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer is a vocabulary-less tokenizer: it splits on whitespace
// and hashes each word into the id space. Good enough to drive a model
// session or a deterministic fallback; not a real WordPiece tokenizer.
type HashTokenizer struct{}

// Tokenize builds [CLS] word... [SEP] padded out to maxTokens.
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	ids := make([]int64, 0, maxTokens)
	ids = append(ids, clsTokenID)
	for _, word := range strings.Fields(text) {
		if len(ids) >= maxTokens-1 {
			break
		}
		ids = append(ids, int64(HashString(word)%vocabSize))
	}
	if len(ids) < maxTokens {
		ids = append(ids, sepTokenID)
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i, id := range ids {
		inputIDs[i] = id
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// HashString maps s to a stable non-negative int. Both the hash tokenizer
// and the mock embedder derive their values from it, so it must never
// change between runs.
func HashString(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}

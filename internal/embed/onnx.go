package embed

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

const (
	// maxSeqLen bounds attention cost; BGE-small supports up to 512 tokens
	// but chunk text rarely needs more than this to capture its meaning.
	maxSeqLen = 256

	// onnxModelName identifies the bundled model for logging and ModelName().
	onnxModelName = "bge-small-en-v1.5"

	// queryPrefix is prepended to queries only, per the BGE asymmetric
	// retrieval convention: documents are embedded bare, queries are not.
	queryPrefix = "Represent this sentence for searching relevant passages: "
)

// ONNXEmbedder embeds text with a BGE-small-en-v1.5 ONNX model, CLS-pooling
// the final hidden state and L2-normalizing the result.
type ONNXEmbedder struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
	batchSize int
	closed    bool
}

// NewONNXEmbedder loads the model at modelPath and tokenizer at
// tokenizerPath, sizing the inference batch from batchSize (typically
// taken from the active mode's settings).
func NewONNXEmbedder(modelPath, tokenizerPath string, batchSize int) (*ONNXEmbedder, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, lumenerrors.New(lumenerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("onnx model not found at %s", modelPath), err).
			WithSuggestion("set LUMEN_MODEL_PATH or switch to the static embedder")
	}
	if _, err := os.Stat(tokenizerPath); err != nil {
		return nil, lumenerrors.New(lumenerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("tokenizer not found at %s", tokenizerPath), err).
			WithSuggestion("set LUMEN_TOKENIZER_PATH or switch to the static embedder")
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to initialize onnx runtime", err)
	}

	numThreads := runtime.NumCPU()
	if numThreads > 4 {
		numThreads = 4
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to create onnx session options", err)
	}
	defer opts.Destroy()

	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to set intra-op thread count", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to set inter-op thread count", err)
	}

	inputNames := []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames := []string{"last_hidden_state"}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to create onnx session", err)
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		session.Destroy()
		return nil, lumenerrors.EmbeddingErr("failed to load tokenizer", err)
	}

	if batchSize <= 0 {
		batchSize = 1
	}

	return &ONNXEmbedder{
		session:   session,
		tokenizer: tk,
		batchSize: batchSize,
	}, nil
}

// EncodeDocuments embeds chunk texts in batches of e.batchSize.
func (e *ONNXEmbedder) EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, lumenerrors.EmbeddingErr("embedder is closed", nil)
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.runBatch(texts[i:end])
		if err != nil {
			return nil, lumenerrors.EmbeddingErr(fmt.Sprintf("embedding batch [%d:%d] failed", i, end), err)
		}
		results = append(results, batch...)
	}
	return results, nil
}

// EncodeQuery embeds a single query string with the BGE asymmetric prefix.
func (e *ONNXEmbedder) EncodeQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.EncodeDocuments(ctx, []string{queryPrefix + query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, lumenerrors.EmbeddingErr("empty embedding result for query", nil)
	}
	return vecs[0], nil
}

type tokenized struct {
	ids  []int64
	mask []int64
}

func (e *ONNXEmbedder) runBatch(texts []string) ([][]float32, error) {
	batchSize := len(texts)

	encoded := make([]tokenized, batchSize)
	maxLen := 0
	for i, text := range texts {
		enc := e.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
		ids := enc.IDs
		if len(ids) > maxSeqLen {
			ids = ids[:maxSeqLen]
		}
		ids64 := make([]int64, len(ids))
		mask64 := make([]int64, len(ids))
		for j, v := range ids {
			ids64[j] = int64(v)
			mask64[j] = 1
		}
		if len(enc.AttentionMask) >= len(ids) {
			for j := range ids64 {
				mask64[j] = int64(enc.AttentionMask[j])
			}
		}
		encoded[i] = tokenized{ids: ids64, mask: mask64}
		if len(ids64) > maxLen {
			maxLen = len(ids64)
		}
	}
	if maxLen == 0 {
		return nil, fmt.Errorf("all texts tokenized to zero length")
	}

	flatIDs := make([]int64, batchSize*maxLen)
	flatMask := make([]int64, batchSize*maxLen)
	flatType := make([]int64, batchSize*maxLen)
	for i, enc := range encoded {
		copy(flatIDs[i*maxLen:], enc.ids)
		copy(flatMask[i*maxLen:], enc.mask)
	}
	shape := ort.NewShape(int64(batchSize), int64(maxLen))

	inputIDs, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer inputIDs.Destroy()

	attnMask, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer attnMask.Destroy()

	typeIDs, err := ort.NewTensor(shape, flatType)
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typeIDs.Destroy()

	inputs := []ort.Value{inputIDs, attnMask, typeIDs}
	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	hiddenTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected onnx output type")
	}
	hidden := hiddenTensor.GetData()
	seqLen := int(hiddenTensor.GetShape()[1])

	embeddings := make([][]float32, batchSize)
	for i := 0; i < batchSize; i++ {
		vec := make([]float32, Dim)
		base := i * seqLen * Dim
		copy(vec, hidden[base:base+Dim])
		embeddings[i] = normalizeVector(vec)
	}

	return embeddings, nil
}

// Dim returns the embedding dimension.
func (e *ONNXEmbedder) Dim() int { return Dim }

// ModelName identifies the loaded model.
func (e *ONNXEmbedder) ModelName() string { return "onnx:" + onnxModelName }

// Close releases the ONNX session and tokenizer.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.session != nil {
		e.session.Destroy()
	}
	if e.tokenizer != nil {
		e.tokenizer.Close()
	}
	return nil
}

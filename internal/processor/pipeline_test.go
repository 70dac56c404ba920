package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/storage"
)

// stubEmbedder 确定性的词命中向量，便于断言检索顺序
type stubEmbedder struct {
	vocab []string
	err   error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	vec := make([]float64, len(s.vocab))
	lower := strings.ToLower(text)
	for i, word := range s.vocab {
		if strings.Contains(lower, word) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, _ := s.Embed(ctx, t)
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vocab) }

func newTestPipeline(t *testing.T) *RetrievalPipeline {
	t.Helper()
	embedder := &stubEmbedder{vocab: []string{"go", "python", "education", "bachelor"}}
	return NewRetrievalPipeline(embedder, storage.NewVectorStore(), 5)
}

const pipelineResume = `SKILLS:
Go, Python

EDUCATION
Bachelor degree`

func TestIndexDocument(t *testing.T) {
	pipeline := newTestPipeline(t)

	count, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, pipeline.ChunkCount("s1"))
}

func TestIndexDocumentEmpty(t *testing.T) {
	pipeline := newTestPipeline(t)

	count, err := pipeline.IndexDocument(context.Background(), "s1", "   ")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, pipeline.ChunkCount("s1"))
}

func TestIndexDocumentEmptyKeepsExistingIndex(t *testing.T) {
	pipeline := newTestPipeline(t)

	_, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.NoError(t, err)

	// 空文本重建返回0且不触碰已有索引
	count, err := pipeline.IndexDocument(context.Background(), "s1", "   ")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 2, pipeline.ChunkCount("s1"))
}

func TestIndexDocumentReplacesPrevious(t *testing.T) {
	pipeline := newTestPipeline(t)

	_, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.NoError(t, err)

	_, err = pipeline.IndexDocument(context.Background(), "s1", "SKILLS:\nGo only")
	require.NoError(t, err)
	assert.Equal(t, 1, pipeline.ChunkCount("s1"))
}

func TestRetrieveRelevantChunks(t *testing.T) {
	pipeline := newTestPipeline(t)
	_, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.NoError(t, err)

	results, err := pipeline.Retrieve(context.Background(), "s1", "what education does the candidate have", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "[education]")
}

func TestRetrieveChunkPrefix(t *testing.T) {
	pipeline := newTestPipeline(t)
	_, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.NoError(t, err)

	results, err := pipeline.Retrieve(context.Background(), "s1", "go skills", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.True(t, strings.HasPrefix(r, "["))
	}
}

func TestRetrieveTopKCap(t *testing.T) {
	embedder := &stubEmbedder{vocab: []string{"chunk"}}
	pipeline := NewRetrievalPipeline(embedder, storage.NewVectorStore(), 50)

	var b strings.Builder
	for i := 0; i < 15; i++ {
		b.WriteString("SECTION HEADER NUMBER:\nchunk content body\n\n")
	}
	_, err := pipeline.IndexDocument(context.Background(), "s1", b.String())
	require.NoError(t, err)

	// topK与默认值都被上限收紧到10
	results, err := pipeline.Retrieve(context.Background(), "s1", "chunk", 999)
	require.NoError(t, err)
	assert.Len(t, results, 10)

	results, err = pipeline.Retrieve(context.Background(), "s1", "chunk", 0)
	require.NoError(t, err)
	assert.Len(t, results, 10)
}

func TestRetrieveUnknownSession(t *testing.T) {
	pipeline := newTestPipeline(t)
	results, err := pipeline.Retrieve(context.Background(), "missing", "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexDocumentEmbedderFailure(t *testing.T) {
	embedder := &stubEmbedder{vocab: []string{"go"}, err: errors.New("backend down")}
	pipeline := NewRetrievalPipeline(embedder, storage.NewVectorStore(), 5)

	_, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.Error(t, err)

	_, err = pipeline.Retrieve(context.Background(), "s1", "question", 3)
	require.Error(t, err)
}

func TestClearSession(t *testing.T) {
	pipeline := newTestPipeline(t)
	_, err := pipeline.IndexDocument(context.Background(), "s1", pipelineResume)
	require.NoError(t, err)

	pipeline.ClearSession("s1")
	assert.Equal(t, 0, pipeline.ChunkCount("s1"))
}

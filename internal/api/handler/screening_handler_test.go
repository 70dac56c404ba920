package handler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/agent"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/storage"
)

// stubEmbedder 按词表命中生成向量，足够驱动检索流程
type stubEmbedder struct {
	vocab []string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
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
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vocab) }

const handlerTestResume = `SKILLS
Go, Python, Kubernetes, MySQL

EXPERIENCE
Senior backend engineer with 6 years of experience building Go services.

EDUCATION
Bachelor of Science, State University
`

const handlerTestJD = `Go, Kubernetes, Terraform, Rust

5+ years backend experience required

Bachelor degree from an accredited university
`

func newTestHandler(t *testing.T) *ScreeningHandler {
	t.Helper()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	st := &storage.Storage{VectorStore: storage.NewVectorStore()}

	extractor, err := parser.NewTextExtractor(context.Background())
	require.NoError(t, err)

	embedder := &stubEmbedder{vocab: []string{"go", "python", "kubernetes", "education", "experience", "bachelor"}}
	pipeline := processor.NewRetrievalPipeline(embedder, st.VectorStore, 5)

	generator, err := agent.NewAnswerGenerator(agent.NewMockChatModel("mock answer", nil), agent.NewInMemoryChatMemory())
	require.NoError(t, err)

	return NewScreeningHandler(cfg, st, extractor, pipeline, parser.NewScoringEngine(), generator)
}

func uploadTestResume(t *testing.T, h *ScreeningHandler) string {
	t.Helper()

	resp, err := h.HandleResumeUpload(context.Background(), strings.NewReader(handlerTestResume), int64(len(handlerTestResume)), "resume.txt", constants.SourceChannelDefault)
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestHandleResumeUpload(t *testing.T) {
	h := newTestHandler(t)

	resp, err := h.HandleResumeUpload(context.Background(), strings.NewReader(handlerTestResume), int64(len(handlerTestResume)), "resume.txt", "web_upload")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 3, resp.ChunksIndexed)
	assert.Equal(t, len(handlerTestResume), resp.TextLength)
	assert.Equal(t, constants.SessionStatusIndexed, resp.Status)
}

func TestHandleResumeUploadUnsupportedType(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleResumeUpload(context.Background(), strings.NewReader("binary"), 6, "resume.docx", "web_upload")
	assert.Error(t, err)
}

func TestHandleJDUploadRequiresResume(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleJDUpload(context.Background(), "no-such-session", nil, "", handlerTestJD)
	assert.ErrorIs(t, err, ErrResumeNotUploaded)
}

func TestHandleJDUploadRawText(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	resp, err := h.HandleJDUpload(context.Background(), sessionID, nil, "", handlerTestJD)
	require.NoError(t, err)
	assert.Equal(t, sessionID, resp.SessionID)
	assert.Equal(t, len(handlerTestJD), resp.TextLength)
	assert.Equal(t, constants.SessionStatusJDReady, resp.Status)
}

func TestHandleJDUploadFromFile(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	resp, err := h.HandleJDUpload(context.Background(), sessionID, []byte(handlerTestJD), "jd.txt", "")
	require.NoError(t, err)
	assert.Equal(t, len(handlerTestJD), resp.TextLength)
}

func TestHandleAnalysis(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	_, err := h.HandleJDUpload(context.Background(), sessionID, nil, "", handlerTestJD)
	require.NoError(t, err)

	analysis, err := h.HandleAnalysis(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Greater(t, analysis.MatchScore, 0.0)
	assert.Contains(t, analysis.SkillOverlap, "Go")
	assert.NotEmpty(t, analysis.KeyInsights)
}

func TestHandleAnalysisRequiresJD(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	_, err := h.HandleAnalysis(context.Background(), sessionID)
	assert.ErrorIs(t, err, ErrJDNotUploaded)
}

func TestHandleChat(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	resp, err := h.HandleChat(context.Background(), sessionID, "Does the candidate know Go?", 3)
	require.NoError(t, err)

	assert.Equal(t, "mock answer", resp.Answer)
	assert.Greater(t, resp.ChunksUsed, 0)
}

func TestHandleChatRequiresResume(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleChat(context.Background(), "no-such-session", "q", 3)
	assert.ErrorIs(t, err, ErrResumeNotUploaded)
}

func TestHandleChatEmptyQuestion(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	_, err := h.HandleChat(context.Background(), sessionID, "  ", 3)
	assert.Error(t, err)
}

func TestHandleSessionDelete(t *testing.T) {
	h := newTestHandler(t)
	sessionID := uploadTestResume(t, h)

	require.NoError(t, h.HandleSessionDelete(context.Background(), sessionID))

	// 删除后视为未上传简历
	_, err := h.HandleChat(context.Background(), sessionID, "q", 3)
	assert.ErrorIs(t, err, ErrResumeNotUploaded)

	// 幂等
	require.NoError(t, h.HandleSessionDelete(context.Background(), sessionID))
}

package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculord/doculord/pkg/docling"
	"github.com/doculord/doculord/pkg/models"
)

// --- fakes -----------------------------------------------------------------

type fakeConverter struct {
	downloadPath  string
	downloadErr   error
	downloadCalls int

	zipPath      string
	convertErr   error
	convertCalls int
	lastOptions  *docling.Options

	cleaned []string
}

func (f *fakeConverter) ConvertFileToZip(_ context.Context, _, _, _ string, opts *docling.Options) (string, error) {
	f.convertCalls++
	f.lastOptions = opts
	if f.convertErr != nil {
		return "", f.convertErr
	}
	return f.zipPath, nil
}

func (f *fakeConverter) DownloadToTemp(_ context.Context, _, _ string) (string, error) {
	f.downloadCalls++
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.downloadPath, nil
}

func (f *fakeConverter) CleanupTempFile(path string) {
	f.cleaned = append(f.cleaned, path)
}

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Invoke(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

type fakeImageStore struct {
	urlMap map[string]string
	err    error
}

func (f *fakeImageStore) UploadImagesFromZip(_ context.Context, _, _, _ string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.urlMap, nil
}

type fakeDocumentStore struct {
	err  error
	docs []*models.Document
}

func (f *fakeDocumentStore) CreateWithQuestions(_ context.Context, doc *models.Document, questions []*models.Question) error {
	if f.err != nil {
		return f.err
	}
	doc.ID = uuid.New()
	for i, q := range questions {
		q.ID = uuid.New()
		q.DocumentID = doc.ID
		if q.QuestionNumber == 0 {
			q.QuestionNumber = i + 1
		}
	}
	doc.QuestionCount = len(questions)
	f.docs = append(f.docs, doc)
	return nil
}

type fakeQuestionStore struct {
	questions map[uuid.UUID]*models.Question

	classifyErr     error
	classifications []models.Classification
	embedErr        error
	embeddings      map[uuid.UUID][]float32
}

func newFakeQuestionStore(questions ...*models.Question) *fakeQuestionStore {
	store := &fakeQuestionStore{
		questions:  map[uuid.UUID]*models.Question{},
		embeddings: map[uuid.UUID][]float32{},
	}
	for _, q := range questions {
		store.questions[q.ID] = q
	}
	return store
}

func (f *fakeQuestionStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.Question, error) {
	var out []models.Question
	for _, id := range ids {
		if q, ok := f.questions[id]; ok {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) ApplyClassification(_ context.Context, c models.Classification) error {
	if f.classifyErr != nil {
		return f.classifyErr
	}
	f.classifications = append(f.classifications, c)
	return nil
}

func (f *fakeQuestionStore) SetEmbedding(_ context.Context, questionID uuid.UUID, embedding []float32) error {
	if f.embedErr != nil {
		return f.embedErr
	}
	f.embeddings[questionID] = embedding
	return nil
}

type fakeEmbedder struct {
	err     error
	vectors [][]float32
}

func (f *fakeEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[0], nil
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 384 }

// writeTestZip creates a conversion bundle on disk.
func writeTestZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "output.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return zipPath
}

func testState() *State {
	return NewState(uuid.New(), "user-1", "https://example.com/docs/exam.pdf?token=abc")
}

// --- ingestion -------------------------------------------------------------

func TestIngestionDownloadsAndConverts(t *testing.T) {
	conv := &fakeConverter{downloadPath: "/tmp/job/exam.pdf", zipPath: "/tmp/job/output.zip"}
	st := testState()

	NewIngestionStage(conv).Run(context.Background(), st)

	assert.Empty(t, st.ErrorMessage)
	assert.Equal(t, "pdf", st.FileType, "query parameters must not confuse type detection")
	assert.Equal(t, "/tmp/job/exam.pdf", st.SourceFilePath)
	assert.Equal(t, "/tmp/job/output.zip", st.OutputZipPath)
	assert.Equal(t, 1, conv.downloadCalls)
	require.NotNil(t, conv.lastOptions)
	assert.Equal(t, docling.OCREngineEasyOCR, conv.lastOptions.OCREngine)
}

func TestIngestionReusesSourceOnRetry(t *testing.T) {
	conv := &fakeConverter{zipPath: "/tmp/job/output.zip"}
	st := testState()
	st.ValidationAttempts = 1
	st.SourceFilePath = "/tmp/job/exam.pdf"
	st.DoclingOptions = retryOptions(2)

	NewIngestionStage(conv).Run(context.Background(), st)

	assert.Empty(t, st.ErrorMessage)
	assert.Zero(t, conv.downloadCalls, "retry must reuse the downloaded source")
	require.NotNil(t, conv.lastOptions)
	assert.Equal(t, docling.PDFBackendDLParseV4, conv.lastOptions.PDFBackend)
	assert.True(t, conv.lastOptions.ForceOCR)
}

func TestIngestionSkipsUnknownDocumentType(t *testing.T) {
	conv := &fakeConverter{downloadPath: "/tmp/job/file.xyz", zipPath: "/tmp/job/output.zip"}
	st := NewState(uuid.New(), "user-1", "https://example.com/docs/file.xyz")

	NewIngestionStage(conv).Run(context.Background(), st)

	assert.Equal(t, docling.KindUnknown, st.FileType)
	assert.Zero(t, conv.downloadCalls, "unknown kind must not be downloaded")
	assert.Zero(t, conv.convertCalls, "unknown kind must not be converted")
	assert.Empty(t, st.OutputZipPath)
	assert.Empty(t, st.ErrorMessage, "the no-content check fails the job, not the stage")
	assert.Equal(t, "unknown document type", st.Metadata["ingestion_skipped"])
	assert.False(t, st.HasContent())
}

func TestIngestionFailureKeepsSourceFile(t *testing.T) {
	conv := &fakeConverter{
		downloadPath: "/tmp/job/exam.pdf",
		convertErr:   errors.New("converter unavailable"),
	}
	st := testState()

	NewIngestionStage(conv).Run(context.Background(), st)

	assert.Contains(t, st.ErrorMessage, "conversion failed")
	assert.Equal(t, "/tmp/job/exam.pdf", st.SourceFilePath)
	assert.Empty(t, conv.cleaned)
}

// --- parsing ---------------------------------------------------------------

func TestParsingCleansMarkdown(t *testing.T) {
	zipPath := writeTestZip(t, map[string][]byte{
		"document.md":             []byte("# Raw\n\nPage 3 of 12\n\n1. Question?"),
		"artifacts/image_000.png": []byte("png"),
	})
	model := &fakeLLM{response: "```markdown\n# Clean\n\n1. Question?\n```"}
	st := testState()
	st.OutputZipPath = zipPath

	NewParsingStage(model).Run(context.Background(), st)

	assert.Equal(t, "# Raw\n\nPage 3 of 12\n\n1. Question?", st.RawMarkdown)
	assert.Equal(t, "# Clean\n\n1. Question?", st.CleanedMarkdown, "code fence must be stripped")
	assert.Equal(t, []string{"artifacts/image_000.png"}, st.ImageFiles)

	// Cleaned copy lands beside the ZIP.
	saved, err := os.ReadFile(filepath.Join(filepath.Dir(zipPath), "cleaned.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Clean\n\n1. Question?", string(saved))

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "artifacts/image_000.png")
}

func TestParsingFallsBackOnLLMFailure(t *testing.T) {
	zipPath := writeTestZip(t, map[string][]byte{"document.md": []byte("# Raw")})
	st := testState()
	st.OutputZipPath = zipPath

	NewParsingStage(&fakeLLM{err: errors.New("model down")}).Run(context.Background(), st)

	assert.Equal(t, "# Raw", st.CleanedMarkdown, "raw markdown carries forward")
	assert.Equal(t, true, st.Metadata["parsing_fallback"])
	assert.Empty(t, st.ErrorMessage, "parsing never fails the pipeline")
}

func TestParsingTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", parsingMaxChars+500)
	zipPath := writeTestZip(t, map[string][]byte{"document.md": []byte(long)})
	model := &fakeLLM{response: "cleaned"}
	st := testState()
	st.OutputZipPath = zipPath

	NewParsingStage(model).Run(context.Background(), st)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0],
		fmt.Sprintf("[truncated, total %d characters]", len(long)))
}

func TestParsingMissingZipIsNonFatal(t *testing.T) {
	st := testState()
	NewParsingStage(&fakeLLM{}).Run(context.Background(), st)
	assert.Empty(t, st.ErrorMessage)
	assert.NotEmpty(t, st.Metadata["parsing_error"])
}

// --- validation ------------------------------------------------------------

func validationState(t *testing.T) (*State, *fakeConverter) {
	t.Helper()
	zipPath := writeTestZip(t, map[string][]byte{
		"document.md":             []byte("# Converted"),
		"artifacts/image_000.png": []byte("png"),
	})
	source := filepath.Join(t.TempDir(), "exam.pdf")
	require.NoError(t, os.WriteFile(source, []byte("pdf-bytes"), 0o644))

	st := testState()
	st.FileType = "pdf"
	st.OutputZipPath = zipPath
	st.SourceFilePath = source
	return st, &fakeConverter{}
}

func TestValidationPassCleansSource(t *testing.T) {
	st, conv := validationState(t)
	source := st.SourceFilePath
	model := &fakeLLM{response: `{"score": 92, "passed": true, "issues": [], "recommendation": ""}`}

	NewValidationStage(model, conv).Run(context.Background(), st)

	assert.True(t, st.ValidationPassed)
	assert.Equal(t, 1, st.ValidationAttempts)
	assert.Equal(t, []string{source}, conv.cleaned)
	assert.Empty(t, st.SourceFilePath)
}

func TestValidationInfersPassFromScore(t *testing.T) {
	st, conv := validationState(t)
	model := &fakeLLM{response: `{"score": 75, "issues": []}`}

	NewValidationStage(model, conv).Run(context.Background(), st)

	assert.True(t, st.ValidationPassed, "score >= 70 passes when the verdict is omitted")
}

func TestValidationFailureSchedulesRetry(t *testing.T) {
	st, conv := validationState(t)
	model := &fakeLLM{response: `{"score": 30, "passed": false, "issues": ["garbled OCR"], "recommendation": "force OCR"}`}

	NewValidationStage(model, conv).Run(context.Background(), st)

	assert.False(t, st.ValidationPassed)
	assert.Equal(t, 1, st.ValidationAttempts)
	assert.Contains(t, st.ValidationFeedback, "garbled OCR")
	assert.NotEmpty(t, st.SourceFilePath, "source stays for the retry")
	assert.Empty(t, conv.cleaned)

	require.NotNil(t, st.DoclingOptions)
	assert.Equal(t, docling.PDFBackendDLParseV4, st.DoclingOptions.PDFBackend)
	assert.True(t, st.DoclingOptions.ForceOCR)
	assert.Equal(t, docling.OCREngineTesseract, st.DoclingOptions.OCREngine)
}

func TestValidationThirdAttemptOptions(t *testing.T) {
	st, _ := validationState(t)
	st.ValidationAttempts = 1 // entering attempt 2
	model := &fakeLLM{response: `{"score": 20, "passed": false}`}

	NewValidationStage(model, &fakeConverter{}).Run(context.Background(), st)

	require.NotNil(t, st.DoclingOptions)
	assert.Equal(t, docling.PDFBackendDLParseV2, st.DoclingOptions.PDFBackend)
	assert.Equal(t, docling.OCREngineEasyOCR, st.DoclingOptions.OCREngine)
	assert.True(t, st.DoclingOptions.DoFormulaEnrichment)
}

func TestValidationExhaustionProceeds(t *testing.T) {
	st, conv := validationState(t)
	st.ValidationAttempts = DefaultMaxValidationAttempts - 1
	source := st.SourceFilePath
	model := &fakeLLM{response: `{"score": 10, "passed": false}`}

	NewValidationStage(model, conv).Run(context.Background(), st)

	assert.True(t, st.ValidationPassed, "exhaustion forces the pipeline forward")
	assert.True(t, st.MaxAttemptsReached)
	assert.Equal(t, true, st.Metadata["max_attempts_reached"])
	assert.Equal(t, float64(10), st.Metadata["validation_score"])
	assert.Equal(t, []string{source}, conv.cleaned)
}

func TestValidationFailsOpenOnLLMError(t *testing.T) {
	st, conv := validationState(t)
	model := &fakeLLM{err: errors.New("model down")}

	NewValidationStage(model, conv).Run(context.Background(), st)

	assert.True(t, st.ValidationPassed, "validator unavailability must not block the pipeline")
}

func TestValidationFailsOpenOnGarbageResponse(t *testing.T) {
	st, conv := validationState(t)
	model := &fakeLLM{response: "I could not review this document."}

	NewValidationStage(model, conv).Run(context.Background(), st)

	// Nothing recoverable in the response; the stage fails open rather than
	// retrying conversions on reviewer noise.
	assert.True(t, st.ValidationPassed)
	assert.Nil(t, st.DoclingOptions)
}

// --- persistence -----------------------------------------------------------

func TestPersistenceStoresDocumentAndQuestions(t *testing.T) {
	zipPath := writeTestZip(t, map[string][]byte{
		"document.md":             []byte("ignored"),
		"artifacts/image_000.png": []byte("png"),
	})
	store := &fakeImageStore{urlMap: map[string]string{
		"artifacts/image_000.png": "/doculord/api/v1/images/user-1/job/image_000.png",
		"image_000.png":           "/doculord/api/v1/images/user-1/job/image_000.png",
	}}
	model := &fakeLLM{response: `[
		{"question_text": "What is 2+2?", "question_type": "multiple_choice",
		 "options": {"A": "3", "B": "4"}, "image_urls": ["image_000.png"]},
		{"question_text": "", "question_type": "open_ended"},
		{"question_text": "Explain gravity.", "question_type": "not-a-kind"}
	]`}
	docs := &fakeDocumentStore{}

	st := testState()
	st.FileType = "pdf"
	st.OutputZipPath = zipPath
	st.RawMarkdown = "![fig](artifacts/image_000.png)"
	st.CleanedMarkdown = `![fig](artifacts/image_000.png) <img src="image_000.png">`

	NewPersistenceStage(store, model, docs).Run(context.Background(), st)

	require.Empty(t, st.ErrorMessage)
	assert.Equal(t,
		`![fig](/doculord/api/v1/images/user-1/job/image_000.png) <img src="/doculord/api/v1/images/user-1/job/image_000.png">`,
		st.PublicMarkdown)

	require.NotNil(t, st.DocumentID)
	require.Len(t, docs.docs, 1)
	doc := docs.docs[0]
	assert.Equal(t, "exam.pdf", doc.Filename)
	assert.Equal(t, 2, doc.QuestionCount, "empty-text entry is dropped")
	assert.Len(t, st.QuestionIDs, 2)
}

func TestPersistenceInvalidTypeDefaultsToOpenEnded(t *testing.T) {
	q := questionFromEntry(map[string]any{
		"question_text": "Explain gravity.",
		"question_type": "essay",
	})
	require.NotNil(t, q)
	assert.Equal(t, models.QuestionTypeOpenEnded, q.QuestionType)
}

func TestPersistenceOptionsOnlyForMultipleChoice(t *testing.T) {
	t.Run("stray options on an open-ended entry are dropped", func(t *testing.T) {
		q := questionFromEntry(map[string]any{
			"question_text": "Explain gravity.",
			"question_type": "open_ended",
			"options":       map[string]any{"A": "9.8 m/s²", "B": "10 m/s²"},
		})
		require.NotNil(t, q)
		assert.Equal(t, models.QuestionTypeOpenEnded, q.QuestionType)
		assert.Nil(t, q.Options)
	})

	t.Run("multiple choice without options degrades to open-ended", func(t *testing.T) {
		q := questionFromEntry(map[string]any{
			"question_text": "What is 2+2?",
			"question_type": "multiple_choice",
		})
		require.NotNil(t, q)
		assert.Equal(t, models.QuestionTypeOpenEnded, q.QuestionType)
		assert.Nil(t, q.Options)
	})

	t.Run("multiple choice keeps its options", func(t *testing.T) {
		q := questionFromEntry(map[string]any{
			"question_text": "What is 2+2?",
			"question_type": "multiple_choice",
			"options":       map[string]any{"A": "3", "B": "4"},
		})
		require.NotNil(t, q)
		assert.Equal(t, models.QuestionTypeMultipleChoice, q.QuestionType)
		assert.Equal(t, models.OptionMap{"A": "3", "B": "4"}, q.Options)
	})
}

func TestPersistenceRewriteLongestRefFirst(t *testing.T) {
	urlMap := map[string]string{
		"image_1.png":  "/img/one.png",
		"image_10.png": "/img/ten.png",
		"image_1.png2": "/img/odd.png", // longer key containing a shorter one
	}
	out := rewriteImageRefs("![a](image_10.png) ![b](image_1.png)", urlMap)
	assert.Equal(t, "![a](/img/ten.png) ![b](/img/one.png)", out)
}

func TestPersistenceFailureSetsError(t *testing.T) {
	st := testState()
	st.RawMarkdown = "# Content"
	docs := &fakeDocumentStore{err: errors.New("db down")}
	model := &fakeLLM{response: `[]`}

	NewPersistenceStage(&fakeImageStore{}, model, docs).Run(context.Background(), st)

	assert.Contains(t, st.ErrorMessage, "Failed to persist document")
	assert.Nil(t, st.DocumentID)
	assert.Empty(t, st.QuestionIDs)
}

func TestPersistenceSkipsWithoutContent(t *testing.T) {
	st := testState()
	docs := &fakeDocumentStore{}

	NewPersistenceStage(&fakeImageStore{}, &fakeLLM{}, docs).Run(context.Background(), st)

	assert.Empty(t, st.ErrorMessage)
	assert.Empty(t, docs.docs)
	assert.Equal(t, "no content", st.Metadata["persistence_skipped"])
}

// --- classification --------------------------------------------------------

func TestClassificationAppliesResults(t *testing.T) {
	q1 := &models.Question{ID: uuid.New(), QuestionText: "Area of a triangle?", QuestionType: models.QuestionTypeMultipleChoice}
	q2 := &models.Question{ID: uuid.New(), QuestionText: "Explain photosynthesis.", QuestionType: models.QuestionTypeOpenEnded}
	store := newFakeQuestionStore(q1, q2)
	model := &fakeLLM{response: fmt.Sprintf(`[
		{"question_id": "%s", "topic": "math", "subtopic": "geometry",
		 "difficulty": "easy", "grade_level": "middle_school",
		 "cognitive_level": "application", "tags": ["triangle"]},
		{"question_id": "%s", "topic": "not-a-topic", "difficulty": "brutal",
		 "cognitive_level": "guessing"}
	]`, q1.ID, q2.ID)}

	st := testState()
	st.QuestionIDs = []uuid.UUID{q1.ID, q2.ID}

	NewClassificationStage(model, store).Run(context.Background(), st)

	assert.Equal(t, 2, st.ClassifiedCount)
	require.Len(t, store.classifications, 2)
	assert.Equal(t, "math", store.classifications[0].Topic)

	// Unknown enum values degrade to defaults rather than dropping the entry.
	fallback := store.classifications[1]
	assert.Equal(t, defaultTopic, fallback.Topic)
	assert.Equal(t, defaultDifficulty, fallback.Difficulty)
	assert.Equal(t, defaultCognitiveLevel, fallback.CognitiveLevel)
}

func TestClassificationTruncatesQuestionText(t *testing.T) {
	q := &models.Question{
		ID:           uuid.New(),
		QuestionText: strings.Repeat("y", classificationMaxQuestionChars+200),
	}
	model := &fakeLLM{response: "[]"}
	st := testState()
	st.QuestionIDs = []uuid.UUID{q.ID}

	NewClassificationStage(model, newFakeQuestionStore(q)).Run(context.Background(), st)

	require.Len(t, model.prompts, 1)
	assert.NotContains(t, model.prompts[0], strings.Repeat("y", classificationMaxQuestionChars+1))
}

func TestClassificationSwallowsLLMFailure(t *testing.T) {
	q := &models.Question{ID: uuid.New(), QuestionText: "Q?"}
	st := testState()
	st.QuestionIDs = []uuid.UUID{q.ID}

	NewClassificationStage(&fakeLLM{err: errors.New("model down")}, newFakeQuestionStore(q)).
		Run(context.Background(), st)

	assert.Zero(t, st.ClassifiedCount)
	assert.NotEmpty(t, st.Metadata["classification_error"])
	assert.Empty(t, st.ErrorMessage, "classification must not abort the pipeline")
}

// --- vectorization ---------------------------------------------------------

func TestVectorizationEmbedsInOrder(t *testing.T) {
	q1 := &models.Question{ID: uuid.New(), QuestionNumber: 1, QuestionText: "First?"}
	q2 := &models.Question{ID: uuid.New(), QuestionNumber: 2, QuestionText: "Second?"}
	store := newFakeQuestionStore(q1, q2)
	embedder := &fakeEmbedder{vectors: [][]float32{{0.1}, {0.2}}}

	st := testState()
	st.QuestionIDs = []uuid.UUID{q1.ID, q2.ID}

	NewVectorizationStage(embedder, store).Run(context.Background(), st)

	assert.Equal(t, 2, st.VectorizedCount)
	assert.Equal(t, []float32{0.1}, store.embeddings[q1.ID])
	assert.Equal(t, []float32{0.2}, store.embeddings[q2.ID])
}

func TestVectorizationSwallowsEmbedderFailure(t *testing.T) {
	q := &models.Question{ID: uuid.New(), QuestionText: "Q?"}
	st := testState()
	st.QuestionIDs = []uuid.UUID{q.ID}

	NewVectorizationStage(&fakeEmbedder{err: errors.New("embedder down")}, newFakeQuestionStore(q)).
		Run(context.Background(), st)

	assert.Zero(t, st.VectorizedCount)
	assert.NotEmpty(t, st.Metadata["vectorization_error"])
	assert.Empty(t, st.ErrorMessage)
}

func TestVectorizationSizeMismatchIsRecorded(t *testing.T) {
	q := &models.Question{ID: uuid.New(), QuestionText: "Q?"}
	store := newFakeQuestionStore(q)
	st := testState()
	st.QuestionIDs = []uuid.UUID{q.ID}

	NewVectorizationStage(&fakeEmbedder{vectors: [][]float32{{0.1}, {0.2}}}, store).
		Run(context.Background(), st)

	assert.Zero(t, st.VectorizedCount)
	assert.Empty(t, store.embeddings)
	assert.Equal(t, "embedding batch size mismatch", st.Metadata["vectorization_error"])
}

// --- truncation ------------------------------------------------------------

func TestTruncateWithMarkerKeepsRuneBoundary(t *testing.T) {
	// Every rune is 3 bytes, so a cut at 10 bytes would land mid-rune.
	text := strings.Repeat("€", 10)
	out := truncateWithMarker(text, 10)

	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.Contains(t, out, fmt.Sprintf("[truncated, total %d characters]", len(text)))
	assert.True(t, strings.HasPrefix(out, strings.Repeat("€", 3)))

	assert.Equal(t, "short", truncateWithMarker("short", 10))
}

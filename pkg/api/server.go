// Package api exposes the HTTP surface: document upload, processing job
// management, document/question reads and edits, semantic search, and the
// image proxy. All routes except image serving and /health require client
// credentials.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/embedding"
	"github.com/doculord/doculord/pkg/queue"
	"github.com/doculord/doculord/pkg/services"
)

// RoutePrefix is the base path of every versioned endpoint.
const RoutePrefix = "/doculord/api/v1"

// ObjectStore is the subset of the storage client the API touches.
type ObjectStore interface {
	UploadDocument(ctx context.Context, content []byte, filename, userID string) (string, error)
	GetImage(ctx context.Context, userID, jobID, filename string) ([]byte, string, error)
}

// JobController is the worker pool surface the API touches.
type JobController interface {
	CancelJob(jobID uuid.UUID) bool
	Health() *queue.PoolHealth
}

// Server holds the handler dependencies.
type Server struct {
	db          *database.Client
	jobs        *services.JobService
	documents   *services.DocumentService
	questions   *services.QuestionService
	search      *services.SearchService
	credentials *services.CredentialService
	store       ObjectStore
	embedder    embedding.Provider
	pool        JobController
}

// NewServer creates a new API server. pool may be nil (cancellation and pool
// health reporting disabled).
func NewServer(
	db *database.Client,
	jobs *services.JobService,
	documents *services.DocumentService,
	questions *services.QuestionService,
	search *services.SearchService,
	credentials *services.CredentialService,
	store ObjectStore,
	embedder embedding.Provider,
	pool JobController,
) *Server {
	return &Server{
		db:          db,
		jobs:        jobs,
		documents:   documents,
		questions:   questions,
		search:      search,
		credentials: credentials,
		store:       store,
		embedder:    embedder,
		pool:        pool,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.healthHandler)

	v1 := r.Group(RoutePrefix)

	// Image serving is public: the URLs are embedded in markdown consumed by
	// browsers that cannot attach credential headers.
	v1.GET("/images/:user_id/:job_id/:filename", s.serveImageHandler)

	authed := v1.Group("", s.requireClientCredentials())
	authed.POST("/upload", s.uploadHandler)
	authed.POST("/process-doc", s.processDocHandler)
	authed.GET("/jobs/:id", s.getJobHandler)
	authed.POST("/jobs/:id/cancel", s.cancelJobHandler)
	authed.GET("/documents", s.listDocumentsHandler)
	authed.GET("/documents/:id", s.getDocumentHandler)
	authed.GET("/documents/:id/questions", s.listQuestionsHandler)
	authed.GET("/documents/:id/questions/:question_id", s.getQuestionHandler)
	authed.PUT("/documents/:id/questions/:question_id", s.updateQuestionHandler)
	authed.GET("/questions/search", s.searchQuestionsHandler)
	authed.GET("/questions/:id/similar", s.similarQuestionsHandler)

	return r
}

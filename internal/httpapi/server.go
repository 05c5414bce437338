// Package httpapi implements C14: the Gin HTTP surface spec.md §6
// describes, wiring every other component (store, hybrid engine, ingestion
// pipeline, graph builder, chat orchestrator, secrets codec, auth) behind
// the route table.
//
// Grounded on web/server.go for the Gin engine construction (gin.New +
// Recovery, followed here by request-ID and CORS middleware) and on
// web/middleware/session.go / web/middleware/rate_limiter.go for the
// identity/rate-limit middleware shape, generalized from the teacher's
// anonymous cookie-session model to JWT bearer auth with a role claim.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kbagent/internal/auth"
	"kbagent/internal/chatreply"
	"kbagent/internal/config"
	"kbagent/internal/embedding"
	"kbagent/internal/graph"
	"kbagent/internal/hybrid"
	"kbagent/internal/ingest"
	"kbagent/internal/secrets"
	"kbagent/internal/store"
	"kbagent/internal/webmiddleware"
)

// Server wires every dependency behind the HTTP surface.
type Server struct {
	router       *gin.Engine
	store        *store.Store
	engine       *hybrid.Engine
	pipeline     *ingest.Pipeline
	builder      *graph.Builder
	orchestrator *chatreply.Orchestrator
	embedder     *embedding.Service
	secretsCodec *secrets.Codec
	tokens       *auth.TokenIssuer
	cfg          *config.Config
	logger       *zap.Logger
	limiter      *webmiddleware.SessionRateLimiter
}

// Deps bundles every constructed component Server needs. Built once in
// cmd/kbagent/main.go and handed to NewServer.
type Deps struct {
	Store        *store.Store
	Engine       *hybrid.Engine
	Pipeline     *ingest.Pipeline
	Builder      *graph.Builder
	Orchestrator *chatreply.Orchestrator
	Embedder     *embedding.Service
	SecretsCodec *secrets.Codec
	Tokens       *auth.TokenIssuer
	Config       *config.Config
	Logger       *zap.Logger
}

// NewServer constructs the Gin engine and registers every route.
func NewServer(d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(d.Config.CORSOrigins))

	s := &Server{
		router: router, store: d.Store, engine: d.Engine, pipeline: d.Pipeline,
		builder: d.Builder, orchestrator: d.Orchestrator, embedder: d.Embedder,
		secretsCodec: d.SecretsCodec, tokens: d.Tokens, cfg: d.Config, logger: d.Logger,
		limiter: webmiddleware.NewSessionRateLimiter(webmiddleware.RateLimiterConfig{
			MessagesPerMinute: 30, FilesPerHour: 40, BurstSize: 10, CleanupInterval: 10 * time.Minute,
		}, d.Logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)

	api := s.router.Group("/api")
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("")
	authed.Use(s.authMiddleware())
	{
		authed.GET("/users/me", s.handleUsersMe)

		admin := authed.Group("/admin/users")
		admin.Use(s.requireRole("admin"))
		admin.GET("", s.handleAdminListUsers)
		admin.POST("", s.handleAdminCreateUser)
		admin.PUT("/:id", s.handleAdminUpdateUser)

		authed.GET("/providers", s.handleListProviders)
		authed.POST("/providers", s.handleCreateProvider)
		authed.PUT("/providers/:id", s.handleUpdateProvider)
		authed.DELETE("/providers/:id", s.handleDeleteProvider)
		authed.POST("/models/validate", s.handleValidateModel)

		authed.GET("/kb/libraries", s.handleListLibraries)
		authed.POST("/kb/libraries", s.handleCreateLibrary)
		authed.GET("/kb/libraries/:id", s.handleGetLibrary)
		authed.PUT("/kb/libraries/:id", s.handleUpdateLibrary)
		authed.DELETE("/kb/libraries/:id", s.handleDeleteLibrary)

		authed.POST("/kb/files/upload", webmiddleware.RateLimit(s.limiter, "file"), s.handleUploadFile)
		authed.GET("/kb/libraries/:id/files", s.handleListFiles)
		authed.DELETE("/kb/files/:id", s.handleDeleteFile)

		authed.GET("/kb/libraries/:id/graph", s.handleGraphSnapshot)
		authed.POST("/kb/libraries/:id/graph/rebuild", s.handleGraphRebuild)

		authed.POST("/kb/files/sync-directory", s.handleSyncDirectory)
		authed.POST("/kb/index/rebuild", s.handleIndexRebuild)
		authed.GET("/kb/tasks/:id", s.handleGetTask)

		profiles := authed.Group("/settings/retrieval-profiles")
		profiles.GET("", s.handleListProfiles)
		profiles.POST("", s.requireRole("admin"), s.handleCreateProfile)
		profiles.PUT("/:id", s.requireRole("admin"), s.handleUpdateProfile)
		profiles.DELETE("/:id", s.requireRole("admin"), s.handleDeleteProfile)

		authed.POST("/chat/sessions", s.handleCreateSession)
		authed.GET("/chat/sessions", s.handleListSessions)
		authed.DELETE("/chat/sessions/:id", s.handleDeleteSession)
		authed.PATCH("/chat/sessions/:id", s.handleUpdateSession)
		authed.POST("/chat/sessions/:id/messages", webmiddleware.RateLimit(s.limiter, "message"), s.handleSendMessage)
		authed.GET("/chat/sessions/:id/messages", s.handleListMessages)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the HTTP server until ctx is cancelled, matching
// web/server.go's Start shape.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("starting http server", zap.String("address", addr))
	srv := &http.Server{Addr: addr, Handler: s.router}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Set("requestID", id)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

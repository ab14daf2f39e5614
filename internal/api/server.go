// Package api hosts the HTTP layer (spec §6's "out of scope" collaborator,
// implemented here as a concrete gin router) binding every engine operation
// to an inbound request. Grounded on the teacher's cmd/server/main.go global
// container + CORS middleware shape, with the bare net/http mux replaced by
// github.com/gin-gonic/gin (codeready-toolchain/tarsy's router pattern) to
// host the larger route surface and per-session SSE endpoints.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llmrpg/internal/apperr"
	"llmrpg/internal/imagepipeline"
	"llmrpg/internal/mission"
	"llmrpg/internal/session"
	"llmrpg/internal/store"
	"llmrpg/internal/streamhub"
	"llmrpg/internal/taskmanager"
)

// Server wires every core subsystem behind the route table (spec §6
// "inbound request surface").
type Server struct {
	Sessions      *session.Manager
	Hub           *streamhub.Hub
	Tasks         *taskmanager.Manager
	Images        *imagepipeline.Pipeline
	Store         *store.Store
	ImageAssetDir string
	AllowedOrigin string
}

// Router builds the gin.Engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.corsMiddleware())

	r.GET("/health", s.handleHealth)

	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:sessionId", s.handleGetSession)
		sessions.GET("/:sessionId/stream", s.handleStream)
		sessions.POST("/:sessionId/actions", s.handleProcessAction)
		sessions.POST("/:sessionId/items/:itemId/use", s.handleUseItem)
		sessions.POST("/:sessionId/scene", s.handleChangeScene)
		sessions.POST("/:sessionId/era/skip", s.handleSkipEra)
		sessions.GET("/:sessionId/missions", s.handleListMissions)
		sessions.POST("/:sessionId/missions/:missionId/submit", s.handleSubmitMission)
		sessions.POST("/:sessionId/missions/:missionId/abandon", s.handleAbandonMission)
		sessions.GET("/:sessionId/storyline", s.handleStorylineStatus)
	}

	tasks := r.Group("/tasks")
	{
		tasks.POST("", s.handleCreateTask)
		tasks.GET("/:taskId", s.handleGetTask)
		tasks.POST("/:taskId/resume", s.handleResumeTask)
	}
	r.GET("/users/:userId/tasks", s.handleListTasksByUser)

	files := r.Group("/files/:fileId")
	{
		files.POST("/images", s.handleGenerateImages)
		files.GET("/world", s.handleWorldImage)
		files.GET("/player", s.handleUserImage)
		files.GET("/scenes/:sceneId/icon", s.handleSceneImage)
		files.GET("/npcs/:npcId/icon", s.handleNPCImage)
		files.GET("/buildings/:buildingId/icon", s.handleBuildingImage)
	}

	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	origin := s.AllowedOrigin
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps an apperr.Kind to the HTTP status spec §7 implies and
// writes a JSON error body; unrecognized errors default to 500.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.SceneLocked, apperr.AlreadyAtLastEra, apperr.MissionNotActive, apperr.ValidationFailure:
		status = http.StatusBadRequest
	case apperr.StorylineBlocked:
		status = http.StatusConflict
	case apperr.LLMFailure, apperr.PersistenceFailure, apperr.TaskRecoveryFailure:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(kind)})
}

func missionsOrEmpty(ms []mission.Mission) []mission.Mission {
	if ms == nil {
		return []mission.Mission{}
	}
	return ms
}

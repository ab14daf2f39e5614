package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"llmrpg/internal/apperr"
)

type createSessionRequest struct {
	FileID        string `json:"fileId" binding:"required"`
	PlayerName    string `json:"playerName"`
	LiteraryStyle string `json:"literaryStyle"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "invalid request body", err))
		return
	}

	sessionID := uuid.NewString()
	cs, err := s.Sessions.Create(sessionID, req.FileID, req.PlayerName, req.LiteraryStyle)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cs)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	cs, err := s.Sessions.RecoverSession(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// handleStream subscribes the caller to the session's SSE event channel
// (spec §6 "event wire format"); actions are submitted separately via
// handleProcessAction, whose published events this connection receives.
func (s *Server) handleStream(c *gin.Context) {
	s.Hub.ServeHTTP(c.Writer, c.Request, c.Param("sessionId"))
}

type processActionRequest struct {
	Action string `json:"action" binding:"required"`
	Live   bool   `json:"live"`
}

// handleProcessAction runs one player turn and returns the final result
// once the LLM stream completes; the per-chunk events were already
// delivered to any subscriber of /sessions/:sessionId/stream as the turn
// ran, in either "buffered" (response_chunk) or "live" (stream) mode per
// req.Live (spec §9 "streaming vs buffered reply").
func (s *Server) handleProcessAction(c *gin.Context) {
	var req processActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "invalid request body", err))
		return
	}

	result, err := s.Sessions.ProcessAction(c.Request.Context(), c.Param("sessionId"), req.Action, req.Live)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleUseItem(c *gin.Context) {
	result, err := s.Sessions.UseItem(c.Request.Context(), c.Param("sessionId"), c.Param("itemId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type changeSceneRequest struct {
	SceneID string `json:"sceneId" binding:"required"`
}

func (s *Server) handleChangeScene(c *gin.Context) {
	var req changeSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "invalid request body", err))
		return
	}
	player, err := s.Sessions.ChangeScene(c.Param("sessionId"), req.SceneID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

func (s *Server) handleSkipEra(c *gin.Context) {
	result, err := s.Sessions.SkipToNextEra(c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

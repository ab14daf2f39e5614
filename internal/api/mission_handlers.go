package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llmrpg/internal/apperr"
)

// handleListMissions returns the session's active and completed missions
// (spec §6 "mission list"); it reads the in-memory snapshot directly since
// the Session Runtime already keeps it consistent with persisted state.
func (s *Server) handleListMissions(c *gin.Context) {
	cs, ok := s.Sessions.Get(c.Param("sessionId"))
	if !ok {
		writeError(c, apperr.New(apperr.NotFound, "session not found: "+c.Param("sessionId")))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"missions":          missionsOrEmpty(cs.Missions),
		"completedMissions": missionsOrEmpty(cs.CompletedMissions),
	})
}

func (s *Server) handleSubmitMission(c *gin.Context) {
	result, err := s.Sessions.SubmitMission(c.Request.Context(), c.Param("sessionId"), c.Param("missionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAbandonMission(c *gin.Context) {
	result, err := s.Sessions.AbandonMission(c.Request.Context(), c.Param("sessionId"), c.Param("missionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStorylineStatus(c *gin.Context) {
	status, err := s.Sessions.StorylineStatus(c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

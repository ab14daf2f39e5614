package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"llmrpg/internal/apperr"
	"llmrpg/internal/taskmanager"
)

// handleCreateTask accepts a multipart document upload and launches the
// ingest workflow, returning the new taskId immediately (spec §4.10 "task
// create"). The text-extraction library itself is an out-of-scope external
// collaborator (spec §1); this layer only supplies the raw bytes.
func (s *Server) handleCreateTask(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		writeError(c, apperr.New(apperr.ValidationFailure, "missing required field: userId"))
		return
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "missing required file: document", err))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "cannot open uploaded file", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "cannot read uploaded file", err))
		return
	}

	opts := taskmanager.CreateOptions{
		Filename:   fileHeader.Filename,
		SkipImages: c.PostForm("skipImages") == "true",
		ImageOptions: taskmanager.ImageOptions{
			GenerateNPCs:      boolForm(c, "generateNPCs"),
			GenerateScenes:    boolForm(c, "generateScenes"),
			GenerateBuildings: boolForm(c, "generateBuildings"),
			GenerateWorld:     boolForm(c, "generateWorld"),
			GenerateUser:      boolForm(c, "generateUser"),
			UpdateJSON:        true,
		},
	}

	taskID, err := s.Tasks.CreateTask(userID, data, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"taskId": taskID})
}

func boolForm(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

func (s *Server) handleGetTask(c *gin.Context) {
	snap, err := s.Tasks.GetTask(c.Param("taskId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleResumeTask(c *gin.Context) {
	if err := s.Tasks.ResumeTask(c.Param("taskId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleListTasksByUser(c *gin.Context) {
	cat, err := s.Tasks.ListTasksByUser(c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

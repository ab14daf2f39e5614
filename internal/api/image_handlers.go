package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"llmrpg/internal/apperr"
	"llmrpg/internal/imagepipeline"
	"llmrpg/internal/logging"

	"go.uber.org/zap"
)

type generateImagesRequest struct {
	GenerateNPCs      bool `json:"generateNPCs"`
	GenerateScenes    bool `json:"generateScenes"`
	GenerateBuildings bool `json:"generateBuildings"`
	GenerateWorld     bool `json:"generateWorld"`
	GenerateUser      bool `json:"generateUser"`
	UpdateJSON        bool `json:"updateJSON"`
}

// handleGenerateImages runs the image pipeline for a fileId, either inline
// (the default: block until every requested family finishes and return the
// Result) or deferred via ?mode=deferred (launch on a background goroutine
// and return immediately), per spec §6 "image generation (deferred or
// inline)".
func (s *Server) handleGenerateImages(c *gin.Context) {
	if s.Images == nil {
		writeError(c, apperr.New(apperr.ValidationFailure, "image pipeline not configured"))
		return
	}
	var req generateImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.ValidationFailure, "invalid request body", err))
		return
	}
	fileID := c.Param("fileId")
	opts := imagepipeline.Options{
		GenerateNPCs: req.GenerateNPCs, GenerateScenes: req.GenerateScenes,
		GenerateBuildings: req.GenerateBuildings, GenerateWorld: req.GenerateWorld,
		GenerateUser: req.GenerateUser, UpdateJSON: req.UpdateJSON,
	}

	if c.Query("mode") == "deferred" {
		// The request context is canceled once the handler returns, so the
		// background run keeps its values but not its cancellation.
		bgCtx := context.WithoutCancel(c.Request.Context())
		go func() {
			if _, err := s.Images.GenerateAllGameImages(bgCtx, fileID, opts); err != nil {
				logging.Warn("deferred image generation failed", zap.String("fileId", fileID), zap.Error(err))
			}
		}()
		c.Status(http.StatusAccepted)
		return
	}

	result, err := s.Images.GenerateAllGameImages(c.Request.Context(), fileID, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) serveAsset(c *gin.Context, kind, id string) {
	path := imagepipeline.AssetPath(s.ImageAssetDir, c.Param("fileId"), kind, id)
	http.ServeFile(c.Writer, c.Request, path)
}

func (s *Server) handleWorldImage(c *gin.Context)    { s.serveAsset(c, "world", "world") }
func (s *Server) handleUserImage(c *gin.Context)     { s.serveAsset(c, "user", "user") }
func (s *Server) handleSceneImage(c *gin.Context)    { s.serveAsset(c, "scene", c.Param("sceneId")) }
func (s *Server) handleNPCImage(c *gin.Context)      { s.serveAsset(c, "npc", c.Param("npcId")) }
func (s *Server) handleBuildingImage(c *gin.Context) { s.serveAsset(c, "building", c.Param("buildingId")) }

package api

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/api/schemas"
	"github.com/mkerring/pagetrace/internal/cache"
	"github.com/mkerring/pagetrace/internal/transform"
)

// handleScreenshot captures a screenshot of the URL, optionally bypassing the
// cache entirely with live=true. Fresh captures run through the image
// pipeline: a full-size JPEG re-encode, an aspect-preserving thumbnail, and an
// optional exact-size variant when width and height are both given.
func (s *Server) handleScreenshot(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		abortWithError(c, http.StatusBadRequest, "URL is required")
		return
	}
	fullPage, _ := strconv.ParseBool(c.DefaultQuery("full_page", "false"))
	live, _ := strconv.ParseBool(c.DefaultQuery("live", "false"))
	thumbnailSize := intQuery(c, "thumbnail_size", s.cfg.Transform.ThumbnailSize)
	quality := intQuery(c, "quality", s.cfg.Transform.JPEGQuality)
	width := intQuery(c, "width", 0)
	height := intQuery(c, "height", 0)

	key := cache.ContentFingerprint(url + "_" + strconv.FormatBool(fullPage))
	if !live {
		if payload, ok := s.store.Get(key); ok {
			c.Data(http.StatusOK, "application/json", payload)
			return
		}
	}

	if err := s.acquireSession(c.Request.Context()); err != nil {
		s.writeSessionError(c, err)
		return
	}
	defer s.releaseSession()

	shot, finalURL, err := s.runner.CaptureScreenshot(c.Request.Context(), url, fullPage)
	if err != nil {
		s.writeSessionError(c, err)
		return
	}

	result := schemas.ScreenshotResult{URL: url, FinalURL: finalURL}

	optimized, err := transform.OptimizeJPEG(shot, 0, 0, quality)
	if err != nil {
		s.log.Warn("Screenshot optimization failed; returning raw capture.", zap.Error(err))
		optimized = shot
	}
	result.Screenshot = base64.StdEncoding.EncodeToString(optimized)

	if thumbnail, err := transform.Thumbnail(shot, thumbnailSize, quality); err == nil {
		result.Thumbnail = base64.StdEncoding.EncodeToString(thumbnail)
	} else {
		s.log.Warn("Thumbnail generation failed.", zap.Error(err))
	}

	if width > 0 && height > 0 {
		if small, err := transform.OptimizeJPEG(shot, width, height, quality); err == nil {
			result.SmallScreenshot = base64.StdEncoding.EncodeToString(small)
		} else {
			s.log.Warn("Resized screenshot generation failed.", zap.Error(err))
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	// live captures are never written back either; two consecutive live calls
	// must not see each other.
	if !live {
		s.store.Put(key, payload, s.cfg.Cache.TTL)
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

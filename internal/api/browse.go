package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/internal/browser"
	"github.com/mkerring/pagetrace/internal/cache"
	"github.com/mkerring/pagetrace/internal/session"
)

// handleBrowse runs a full browse session for the requested URL, serving from
// the fingerprint cache when possible. Degraded captures inside the session
// are invisible here: the caller gets a 200 with a best-effort snapshot.
func (s *Server) handleBrowse(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		abortWithError(c, http.StatusBadRequest, "URL is required")
		return
	}
	method := strings.ToUpper(c.DefaultQuery("method", http.MethodGet))
	postData := c.Query("post_data")
	engineName := strings.ToLower(c.DefaultQuery("browser_name", string(browser.EngineChromium)))
	cookieBanner, _ := strconv.ParseBool(c.DefaultQuery("cookiebanner", "false"))

	// Unsupported engines short-circuit before any resource is touched.
	if _, err := browser.ResolveEngine(engineName); err != nil {
		abortWithError(c, http.StatusBadRequest, `Browser "`+engineName+`" is not supported`)
		return
	}

	key := cache.Fingerprint(url, method, postData, engineName)
	if payload, ok := s.store.Get(key); ok {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	payload, err, _ := s.inflight.Do(key, func() (any, error) {
		if err := s.acquireSession(c.Request.Context()); err != nil {
			return nil, err
		}
		defer s.releaseSession()

		timer := prometheus.NewTimer(s.metrics.SessionDuration)
		snapshot, err := s.runner.Run(c.Request.Context(), session.Target{
			URL:      url,
			Method:   method,
			PostData: postData,
		}, engineName, session.Options{
			CookieBanner:  cookieBanner,
			RecordVideo:   true,
			ThumbnailSize: s.cfg.Transform.ThumbnailSize,
			JPEGQuality:   s.cfg.Transform.JPEGQuality,
		})
		timer.ObserveDuration()
		if err != nil {
			s.metrics.SessionsTotal.WithLabelValues(engineName, "failed").Inc()
			return nil, err
		}
		s.metrics.SessionsTotal.WithLabelValues(engineName, "completed").Inc()

		serialized, err := json.Marshal(snapshot)
		if err != nil {
			return nil, err
		}
		s.store.Put(key, serialized, s.cfg.Cache.TTL)
		return serialized, nil
	})
	if err != nil {
		s.writeSessionError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload.([]byte))
}

// handleVideo records a browse session and returns the webm file itself.
func (s *Server) handleVideo(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		abortWithError(c, http.StatusBadRequest, "URL is required")
		return
	}
	engineName := strings.ToLower(c.DefaultQuery("browser_name", string(browser.EngineChromium)))
	width, _ := strconv.Atoi(c.DefaultQuery("width", "0"))
	height, _ := strconv.Atoi(c.DefaultQuery("height", "0"))

	if err := s.acquireSession(c.Request.Context()); err != nil {
		s.writeSessionError(c, err)
		return
	}
	defer s.releaseSession()

	video, err := s.runner.RecordVideo(c.Request.Context(), url, engineName, width, height)
	if err != nil {
		s.writeSessionError(c, err)
		return
	}

	filename := cache.ContentFingerprint(url) + ".webm"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "video/webm", video)
}

// writeSessionError maps session failures onto the transport: validation
// problems are the client's fault, everything else is a 500.
func (s *Server) writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, browser.ErrUnsupportedEngine):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("Session failed.", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, err.Error())
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mediafetch/internal/job"
	"mediafetch/internal/store"
)

type downloadRequest struct {
	URL         string `json:"url"`
	MaxHeight   int    `json:"max_height"`
	AudioFormat string `json:"audio_format"`
}

type infoRequest struct {
	URL string `json:"url"`
}

type downloadResponse struct {
	JobID       string `json:"job_id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// API wires the job runner and file store into HTTP handlers.
type API struct {
	runner *job.Runner
	store  *store.Store
}

func NewAPI(runner *job.Runner, fileStore *store.Store) *API {
	return &API{runner: runner, store: fileStore}
}

// RegisterRoutes registers API routes on the provided gin engine.
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/health", a.Health)
		api.POST("/info", a.Info)
		api.POST("/download", a.Download)
		api.POST("/download-audio", a.DownloadAudio)
		api.POST("/download-stream", a.DownloadStream)
		api.GET("/files", a.ListFiles)
		api.GET("/file/:name", a.GetFile)
		api.DELETE("/file/:name", a.DeleteFile)
	}
}

// Health probes the external tool's availability.
func (a *API) Health(c *gin.Context) {
	version, err := a.runner.Tool().Version(c.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("health probe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
}

// Info handles the metadata-only query.
func (a *API) Info(c *gin.Context) {
	var req infoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	info, err := a.runner.Info(c.Request.Context(), req.URL)
	if err != nil {
		a.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Download handles the synchronous video job.
func (a *API) Download(c *gin.Context) {
	a.download(c, job.KindVideo)
}

// DownloadAudio handles the synchronous audio job.
func (a *API) DownloadAudio(c *gin.Context) {
	a.download(c, job.KindAudio)
}

func (a *API) download(c *gin.Context, kind job.Kind) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := a.runner.Download(c.Request.Context(), kind, job.Request{
		URL:         req.URL,
		MaxHeight:   req.MaxHeight,
		AudioFormat: req.AudioFormat,
	})
	if err != nil {
		a.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, downloadResponse{
		JobID:       result.ID,
		Filename:    result.Filename,
		DownloadURL: "/api/file/" + result.Filename,
	})
}

// DownloadStream handles the event-streamed job over SSE. The request context
// is cancelled when the client disconnects, which kills the external process.
func (a *API) DownloadStream(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": job.ErrMissingURL.Error()})
		return
	}

	events := a.runner.Stream(c.Request.Context(), job.Request{
		URL:       req.URL,
		MaxHeight: req.MaxHeight,
	})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	for ev := range events {
		c.SSEvent(string(ev.Type), ev.Data)
		c.Writer.Flush()
	}
}

// ListFiles returns stored files with size and creation time.
func (a *API) ListFiles(c *gin.Context) {
	files, err := a.store.List()
	if err != nil {
		log.Error().Err(err).Msg("list files failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// GetFile serves a stored file by name.
func (a *API) GetFile(c *gin.Context) {
	name := c.Param("name")
	path, err := a.store.Path(name)
	if err != nil {
		a.renderStoreError(c, name, err)
		return
	}
	c.FileAttachment(path, name)
}

// DeleteFile removes a stored file by name.
func (a *API) DeleteFile(c *gin.Context) {
	name := c.Param("name")
	if err := a.store.Delete(name); err != nil {
		a.renderStoreError(c, name, err)
		return
	}
	log.Info().Str("file", name).Msg("file deleted")
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// renderJobError maps the runner's error taxonomy onto HTTP statuses.
func (a *API) renderJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrMissingURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, job.ErrToolUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (a *API) renderStoreError(c *gin.Context, name string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn().Str("file", name).Msg("file not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, store.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
	default:
		log.Error().Str("file", name).Err(err).Msg("file operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

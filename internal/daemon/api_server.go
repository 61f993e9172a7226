package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"adforge/internal/assets"
	"adforge/internal/logging"
	"adforge/internal/pipeline"
	"adforge/internal/project"
	"adforge/internal/renderer"
	"adforge/internal/status"
)

// apiServer holds the handler dependencies for the daemon HTTP API.
type apiServer struct {
	controller *pipeline.Controller
	statuses   *status.Service
	uploads    *assets.Store
	logger     *slog.Logger
	notifyTest func(ctx context.Context) (bool, string, error)
}

func newRouter(s *apiServer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(requestIDMiddleware())

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/projects", s.handleListProjects)
		api.POST("/projects", s.handleCreateProject)
		api.GET("/projects/:id", s.handleGetProject)
		api.POST("/projects/:id/video", s.handleStartVideo)
		api.POST("/projects/:id/website", s.handleStartWebsite)
		api.POST("/projects/:id/publish", s.handleStartPublish)
		api.POST("/projects/:id/cancel", s.handleCancel)
		api.POST("/notifications/test", s.handleTestNotification)
	}
	return router
}

func (s *apiServer) handleStatus(c *gin.Context) {
	overview, err := s.statuses.Overview(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *apiServer) handleListProjects(c *gin.Context) {
	views, err := s.statuses.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": views})
}

func (s *apiServer) handleGetProject(c *gin.Context) {
	view, err := s.statuses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *apiServer) handleCreateProject(c *gin.Context) {
	productImage, err := c.FormFile("product_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_image file is required"})
		return
	}
	personMedia, err := c.FormFile("person_media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "person_media file is required"})
		return
	}
	productName := strings.TrimSpace(c.PostForm("product_name"))
	if productName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_name is required"})
		return
	}

	imagePath, err := s.saveUpload(productImage)
	if err != nil {
		s.writeError(c, err)
		return
	}
	mediaPath, err := s.saveUpload(personMedia)
	if err != nil {
		s.writeError(c, err)
		return
	}

	p, err := s.controller.CreateProject(c.Request.Context(), project.Inputs{
		ProductImagePath:   imagePath,
		PersonMediaPath:    mediaPath,
		PersonMediaType:    assets.MediaTypeFor(personMedia.Filename),
		ProductName:        productName,
		ProductDescription: strings.TrimSpace(c.PostForm("product_description")),
		ProductCategory:    strings.TrimSpace(c.PostForm("product_category")),
		ProductPrice:       strings.TrimSpace(c.PostForm("product_price")),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	view, err := s.statuses.Get(c.Request.Context(), p.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type videoRequest struct {
	Style  string `json:"style"`
	Layout string `json:"layout"`
}

func (s *apiServer) handleStartVideo(c *gin.Context) {
	var body videoRequest
	if !s.bindOptionalJSON(c, &body) {
		return
	}
	s.startStage(c, project.StageVideoGenerating, pipeline.TransitionParams{
		VideoStyle:  body.Style,
		VideoLayout: body.Layout,
	})
}

func (s *apiServer) handleStartWebsite(c *gin.Context) {
	s.startStage(c, project.StageWebsiteGenerating, pipeline.TransitionParams{})
}

type publishRequest struct {
	Target  string `json:"target"`
	Caption string `json:"caption"`
}

func (s *apiServer) handleStartPublish(c *gin.Context) {
	var body publishRequest
	if !s.bindOptionalJSON(c, &body) {
		return
	}
	s.startStage(c, project.StagePublishing, pipeline.TransitionParams{
		PublishTarget: body.Target,
		Caption:       body.Caption,
	})
}

func (s *apiServer) handleCancel(c *gin.Context) {
	p, err := s.controller.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	view, err := s.statuses.Get(c.Request.Context(), p.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// requestIDMiddleware tags every request with a correlation id, honoring one
// supplied by the caller, so API log lines can be tied back to a request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-ID", rid)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

func (s *apiServer) handleTestNotification(c *gin.Context) {
	if s.notifyTest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications unavailable"})
		return
	}
	sent, message, err := s.notifyTest(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent, "message": message})
}

// startStage runs the shared transition path: the request is acknowledged as
// soon as the job is accepted, with the updated record in the response.
func (s *apiServer) startStage(c *gin.Context, target project.Stage, params pipeline.TransitionParams) {
	ctx := logging.WithProject(c.Request.Context(), c.Param("id"))
	ctx = logging.WithStage(ctx, string(target))
	c.Request = c.Request.WithContext(ctx)

	p, err := s.controller.RequestTransition(ctx, c.Param("id"), target, params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	view, err := s.statuses.Get(c.Request.Context(), p.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

// bindOptionalJSON decodes an optional JSON body. An empty body is fine;
// malformed JSON is a 400.
func (s *apiServer) bindOptionalJSON(c *gin.Context, target any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *apiServer) saveUpload(header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.uploads.Save(header.Filename, f)
}

func (s *apiServer) writeError(c *gin.Context, err error) {
	var code int
	switch {
	case errors.Is(err, project.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, project.ErrConflict),
		errors.Is(err, project.ErrInvalidTransition),
		errors.Is(err, project.ErrVersionConflict):
		code = http.StatusConflict
	case errors.Is(err, renderer.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, renderer.ErrExternalService):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	if code >= http.StatusInternalServerError {
		log := logging.WithContext(c.Request.Context(), s.logger)
		log.Error("request failed",
			logging.String("path", c.FullPath()), logging.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

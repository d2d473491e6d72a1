package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	customerrors "github.com/axellelanca/shortlinks/internal/errors"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/services"
)

// Version is reported by the health check.
const Version = "1.0"

// Services groups the business services the handlers call.
type Services struct {
	Links    *services.LinkService
	Redirect *services.RedirectService
	Stats    *services.StatsService
}

// NewRouter builds a gin engine with recovery, access log and metrics
// middlewares and every route registered.
func NewRouter(svc Services, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(recoveryMiddleware(log), loggingMiddleware(log), metricsMiddleware(m))
	SetupRoutes(router, svc, m)
	return router
}

// SetupRoutes configures all Gin routes and injects the services.
func SetupRoutes(router *gin.Engine, svc Services, m *metrics.Metrics) {
	router.GET("/healthz", HealthCheckHandler)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	{
		api.GET("/healthz", HealthCheckHandler)
		api.GET("/links", ListLinksHandler(svc.Links))
		api.POST("/links", CreateLinkHandler(svc.Links))
		api.GET("/links/:code", GetLinkHandler(svc.Links))
		api.DELETE("/links/:code", DeleteLinkHandler(svc.Links))
		api.GET("/stats", StatsHandler(svc.Stats))
	}

	// Redirection at root level, e.g. localhost:8080/abc123
	router.GET("/:code", RedirectHandler(svc.Redirect))
}

// HealthCheckHandler handles /healthz and /api/healthz.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": Version})
}

// CreateLinkRequest is the body of POST /api/links. Code is optional.
type CreateLinkRequest struct {
	URL  string `json:"url"`
	Code string `json:"code"`
}

// CreateLinkHandler handles POST /api/links and answers 201 with the new link.
func CreateLinkHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		link, err := linkService.CreateLink(c.Request.Context(), req.URL, req.Code)
		if err != nil {
			respondError(c, err, "Failed to create link")
			return
		}
		c.JSON(http.StatusCreated, link)
	}
}

// ListLinksHandler handles GET /api/links: every link, newest first, no visits.
func ListLinksHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := linkService.ListLinks(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to fetch links")
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

// GetLinkHandler handles GET /api/links/:code: the link and its last 100 visits.
func GetLinkHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		details, err := linkService.GetLink(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondError(c, err, "Failed to fetch link")
			return
		}
		c.JSON(http.StatusOK, details)
	}
}

// DeleteLinkHandler handles DELETE /api/links/:code.
func DeleteLinkHandler(linkService *services.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := linkService.DeleteLink(c.Request.Context(), c.Param("code")); err != nil {
			respondError(c, err, "Failed to delete link")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// StatsHandler handles GET /api/stats.
func StatsHandler(statsService *services.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := statsService.Aggregate(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to fetch statistics")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// RedirectHandler handles GET /:code with a 302 to the link target.
func RedirectHandler(redirectService *services.RedirectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := models.RequestMetadata{
			UserAgent: optionalHeader(c, "User-Agent"),
			Referer:   optionalHeader(c, "Referer"),
		}

		target, err := redirectService.Resolve(c.Request.Context(), c.Param("code"), meta)
		if err != nil {
			respondError(c, err, "Server error")
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}

// optionalHeader returns nil for a missing or empty header.
func optionalHeader(c *gin.Context, name string) *string {
	v := c.GetHeader(name)
	if v == "" {
		return nil
	}
	return &v
}

// apiError is a status and the message shown to the client.
type apiError struct {
	status  int
	message string
}

var errInternal = apiError{http.StatusInternalServerError, "Internal server error"}

// errorResponses maps service errors to responses. Order matters: refined
// invalid-input errors come before ErrInvalidInput.
var errorResponses = []struct {
	err  error
	resp apiError
}{
	{customerrors.ErrURLRequired, apiError{http.StatusBadRequest, "URL is required"}},
	{customerrors.ErrInvalidURL, apiError{http.StatusBadRequest, "Invalid URL. Must start with http:// or https://"}},
	{customerrors.ErrInvalidShortCode, apiError{http.StatusBadRequest, "Code must be 6-8 alphanumeric characters [A-Za-z0-9]"}},
	{customerrors.ErrInvalidInput, apiError{http.StatusBadRequest, "Invalid input"}},
	{customerrors.ErrConflict, apiError{http.StatusConflict, "Code already exists"}},
	{customerrors.ErrNotFound, apiError{http.StatusNotFound, "Link not found"}},
	{customerrors.ErrExhaustedRetries, apiError{http.StatusInternalServerError, "Failed to generate unique code. Please try again."}},
}

// respondError writes the response matching err. Unknown errors, store
// failures included, get a 500 with fallback as message.
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	for _, e := range errorResponses {
		if errors.Is(err, e.err) {
			abortWithError(c, e.resp)
			return
		}
	}
	abortWithError(c, apiError{http.StatusInternalServerError, fallback})
}

func abortWithError(c *gin.Context, e apiError) {
	c.AbortWithStatusJSON(e.status, gin.H{"error": e.message})
}

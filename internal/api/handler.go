package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/devcircle/devcircle-server/internal/apperrors"
	"github.com/devcircle/devcircle-server/internal/models"
	"github.com/devcircle/devcircle-server/internal/service"
)

// Handler holds the HTTP handlers for all API routes
type Handler struct {
	svc       service.Service
	clientURL string
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, clientURL string) *Handler {
	return &Handler{
		svc:       svc,
		clientURL: clientURL,
	}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.GET("/github", h.GithubLogin)
		auth.GET("/github/callback", h.GithubCallback)
		auth.GET("/verify", AuthMiddleware(), h.VerifyToken)
	}

	users := api.Group("/users")
	{
		users.GET("/me", AuthMiddleware(), h.GetCurrentUser)
		users.PUT("/me", AuthMiddleware(), h.UpdateProfile)
		users.GET("/leaderboard", h.GetLeaderboard)
		users.GET("/college", h.GetCollegeUsers)
		users.GET("/:id", h.GetUserProfile)
	}

	requests := api.Group("/requests")
	{
		requests.GET("/open", h.GetOpenRequests)
		requests.GET("/:id", h.GetRequestByID)
		requests.POST("", AuthMiddleware(), h.CreateRequest)
		requests.GET("/my/requests", AuthMiddleware(), h.GetUserRequests)
		requests.GET("/my/helped", AuthMiddleware(), h.GetUserHelpedRequests)
		requests.POST("/:id/accept", AuthMiddleware(), h.AcceptRequest)
		requests.POST("/:id/complete", AuthMiddleware(), h.CompleteRequest)
		requests.POST("/:id/cancel", AuthMiddleware(), h.CancelRequest)
	}

	activities := api.Group("/activities")
	{
		activities.GET("/recent", h.GetRecentActivities)
		activities.GET("/my", AuthMiddleware(), h.GetUserActivities)
		activities.GET("/user/:userId", h.GetUserActivitiesByID)
	}
}

// Auth handlers

// GithubLogin returns the URL that starts the GitHub OAuth flow
func (h *Handler) GithubLogin(c *gin.Context) {
	c.JSON(http.StatusOK, models.AuthURLResponse{URL: h.svc.GithubAuthURL()})
}

// GithubCallback exchanges the authorization code and redirects back to the
// client with a session token
func (h *Handler) GithubCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		respondError(c, apperrors.Validation("Authorization code required"))
		return
	}

	resp, err := h.svc.LoginWithGithub(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/callback?token=%s", h.clientURL, resp.Token)
	c.Redirect(http.StatusFound, redirectURL)
}

// VerifyToken returns the user behind the presented token
func (h *Handler) VerifyToken(c *gin.Context) {
	user, err := h.svc.GetCurrentUser(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{Status: "success", User: user})
}

// User handlers

func (h *Handler) GetCurrentUser(c *gin.Context) {
	user, err := h.svc.GetCurrentUser(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) GetUserProfile(c *gin.Context) {
	user, err := h.svc.GetUserProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) GetLeaderboard(c *gin.Context) {
	users, err := h.svc.GetLeaderboard(c.Request.Context(), c.Query("college"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetCollegeUsers(c *gin.Context) {
	users, err := h.svc.GetCollegeUsers(c.Request.Context(), c.Query("college"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// Request handlers

func (h *Handler) CreateRequest(c *gin.Context) {
	var req models.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}

	request, err := h.svc.CreateRequest(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

func (h *Handler) GetOpenRequests(c *gin.Context) {
	requests, err := h.svc.GetOpenRequests(c.Request.Context(), c.Query("college"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *Handler) GetRequestByID(c *gin.Context) {
	request, err := h.svc.GetRequestByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *Handler) GetUserRequests(c *gin.Context) {
	requests, err := h.svc.GetUserRequests(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *Handler) GetUserHelpedRequests(c *gin.Context) {
	requests, err := h.svc.GetUserHelpedRequests(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *Handler) AcceptRequest(c *gin.Context) {
	request, err := h.svc.AcceptRequest(c.Request.Context(), c.Param("id"), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *Handler) CompleteRequest(c *gin.Context) {
	request, err := h.svc.CompleteRequest(c.Request.Context(), c.Param("id"), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *Handler) CancelRequest(c *gin.Context) {
	request, err := h.svc.CancelRequest(c.Request.Context(), c.Param("id"), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// Activity handlers

func (h *Handler) GetRecentActivities(c *gin.Context) {
	activities, err := h.svc.GetRecentActivities(c.Request.Context(), c.Query("college"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, activities)
}

func (h *Handler) GetUserActivities(c *gin.Context) {
	activities, err := h.svc.GetUserActivities(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, activities)
}

func (h *Handler) GetUserActivitiesByID(c *gin.Context) {
	activities, err := h.svc.GetUserActivities(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, activities)
}

// respondError maps a service error to the HTTP error envelope. Untyped
// errors are logged and reported as a generic internal failure.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		message = "Internal server error"
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    apperrors.Code(err),
		Message: message,
	})
}

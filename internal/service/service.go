package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"

	"github.com/devcircle/devcircle-server/internal/activity"
	"github.com/devcircle/devcircle-server/internal/apperrors"
	"github.com/devcircle/devcircle-server/internal/auth"
	"github.com/devcircle/devcircle-server/internal/cache"
	"github.com/devcircle/devcircle-server/internal/models"
	"github.com/devcircle/devcircle-server/internal/repository"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	GithubAuthURL() string
	LoginWithGithub(ctx context.Context, code string) (*models.AuthResponse, error)
	GetCurrentUser(ctx context.Context, userID string) (*models.User, error)

	// Request lifecycle
	CreateRequest(ctx context.Context, requesterID string, req models.CreateRequestRequest) (*models.Request, error)
	AcceptRequest(ctx context.Context, requestID, helperID string) (*models.Request, error)
	CompleteRequest(ctx context.Context, requestID, callerID string) (*models.Request, error)
	CancelRequest(ctx context.Context, requestID, callerID string) (*models.Request, error)

	// Request reads
	GetRequestByID(ctx context.Context, id string) (*models.Request, error)
	GetOpenRequests(ctx context.Context, college string) ([]models.RequestWithOwner, error)
	GetUserRequests(ctx context.Context, userID string) ([]models.Request, error)
	GetUserHelpedRequests(ctx context.Context, userID string) ([]models.Request, error)

	// Users
	GetUserProfile(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	GetLeaderboard(ctx context.Context, college string) ([]models.User, error)
	GetCollegeUsers(ctx context.Context, college string) ([]models.User, error)

	// Activities
	GetUserActivities(ctx context.Context, userID string) ([]models.Activity, error)
	GetRecentActivities(ctx context.Context, college string) ([]models.ActivityFeedItem, error)
}

const (
	userActivityLimit   = 20
	recentActivityLimit = 50
	leaderboardLimit    = 10
)

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	recorder      *activity.Recorder
	identity      auth.IdentityProvider
	leaderboard   *cache.LeaderboardCache
	jwtSecret     []byte
	tokenDuration time.Duration
	collegeID     string
	initialKarma  int
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(
	repo repository.Repository,
	recorder *activity.Recorder,
	identity auth.IdentityProvider,
	leaderboard *cache.LeaderboardCache,
	jwtSecret string,
	collegeID string,
	initialKarma int,
) Service {
	return &DefaultService{
		repo:          repo,
		recorder:      recorder,
		identity:      identity,
		leaderboard:   leaderboard,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		collegeID:     collegeID,
		initialKarma:  initialKarma,
	}
}

// Authentication methods

func (s *DefaultService) GithubAuthURL() string {
	return s.identity.AuthURL()
}

// LoginWithGithub resolves the authorization code to a GitHub identity and
// creates or looks up the matching user. First-time logins are seeded with the
// initial karma grant.
func (s *DefaultService) LoginWithGithub(ctx context.Context, code string) (*models.AuthResponse, error) {
	identity, err := s.identity.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error resolving github identity: %w", err)
	}

	user, err := s.repo.GetUserByGithubID(ctx, identity.GithubID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		email := identity.Email
		if email == "" {
			email = fmt.Sprintf("%s@github.user", identity.Username)
		}

		user = &models.User{
			GithubID:      identity.GithubID,
			Username:      identity.Username,
			Email:         email,
			Avatar:        identity.Avatar,
			College:       s.collegeID,
			KarmaPoints:   s.initialKarma,
			GithubProfile: identity.ProfileURL,
		}

		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("error creating user: %w", err)
		}
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status: "success",
		Token:  token,
		User:   user,
	}, nil
}

func (s *DefaultService) GetCurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}

	return user, nil
}

// Request lifecycle methods

// CreateRequest validates the input, checks the requester's balance and
// persists the request together with the karma debit. The balance check here
// gives the friendly error; the repository's guarded debit is what actually
// prevents an overdraw under concurrent creates.
func (s *DefaultService) CreateRequest(
	ctx context.Context,
	requesterID string,
	req models.CreateRequestRequest,
) (*models.Request, error) {
	if err := validateCreateRequest(&req); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}

	if user.KarmaPoints < req.HelpCredits {
		return nil, apperrors.ErrInsufficientBalance
	}

	request := &models.Request{
		RequesterID: requesterID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		RepoURL:     req.RepoURL,
		Tags:        pq.StringArray(req.Tags),
		HelpCredits: req.HelpCredits,
	}

	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, err
	}

	s.record(&models.Activity{
		UserID:           requesterID,
		Type:             models.ActivityRequestCreated,
		Description:      fmt.Sprintf("Created request: %s", request.Title),
		RelatedRequestID: &request.ID,
	})

	return request, nil
}

// AcceptRequest assigns helperID to an open request. First committer wins:
// the repository transition is conditional on the status still being open.
func (s *DefaultService) AcceptRequest(ctx context.Context, requestID, helperID string) (*models.Request, error) {
	request, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting request: %w", err)
	}

	if request == nil {
		return nil, apperrors.ErrRequestNotFound
	}

	if request.Status != models.StatusOpen {
		return nil, apperrors.ErrRequestNotOpen
	}

	if request.RequesterID == helperID {
		return nil, apperrors.ErrSelfAccept
	}

	updated, err := s.repo.AcceptRequest(ctx, requestID, helperID)
	if err != nil {
		return nil, err
	}

	s.record(&models.Activity{
		UserID:           helperID,
		Type:             models.ActivityRequestAccepted,
		Description:      fmt.Sprintf("Accepted request: %s", request.Title),
		RelatedRequestID: &requestID,
	})

	return updated, nil
}

// CompleteRequest marks an in_progress request completed and credits the
// helper. Only the original requester may attest completion.
func (s *DefaultService) CompleteRequest(ctx context.Context, requestID, callerID string) (*models.Request, error) {
	request, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting request: %w", err)
	}

	if request == nil {
		return nil, apperrors.ErrRequestNotFound
	}

	if request.Status != models.StatusInProgress {
		return nil, apperrors.ErrRequestNotInProgress
	}

	if request.RequesterID != callerID {
		return nil, apperrors.ErrNotRequesterComplete
	}

	updated, err := s.repo.CompleteRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if updated.HelperID != nil {
		s.record(&models.Activity{
			UserID:           *updated.HelperID,
			Type:             models.ActivityHelpProvided,
			Description:      fmt.Sprintf("Helped with: %s", updated.Title),
			RelatedRequestID: &requestID,
			PointsEarned:     updated.HelpCredits,
		})
	}

	s.record(&models.Activity{
		UserID:           callerID,
		Type:             models.ActivityRequestCompleted,
		Description:      fmt.Sprintf("Completed request: %s", updated.Title),
		RelatedRequestID: &requestID,
	})

	return updated, nil
}

// CancelRequest moves a non-completed request to cancelled and refunds the
// requester's original debit. A helper who had already accepted receives
// nothing.
func (s *DefaultService) CancelRequest(ctx context.Context, requestID, callerID string) (*models.Request, error) {
	request, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting request: %w", err)
	}

	if request == nil {
		return nil, apperrors.ErrRequestNotFound
	}

	if request.RequesterID != callerID {
		return nil, apperrors.ErrNotRequesterCancel
	}

	if request.Status == models.StatusCompleted {
		return nil, apperrors.ErrRequestCompleted
	}

	if request.Status == models.StatusCancelled {
		return nil, apperrors.ErrRequestCancelled
	}

	return s.repo.CancelRequest(ctx, requestID)
}

// Request read methods

func (s *DefaultService) GetRequestByID(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting request: %w", err)
	}

	if request == nil {
		return nil, apperrors.ErrRequestNotFound
	}

	return request, nil
}

func (s *DefaultService) GetOpenRequests(ctx context.Context, college string) ([]models.RequestWithOwner, error) {
	return s.repo.GetOpenRequests(ctx, college)
}

func (s *DefaultService) GetUserRequests(ctx context.Context, userID string) ([]models.Request, error) {
	return s.repo.GetRequestsByRequester(ctx, userID)
}

func (s *DefaultService) GetUserHelpedRequests(ctx context.Context, userID string) ([]models.Request, error) {
	return s.repo.GetRequestsByHelper(ctx, userID)
}

// User methods

func (s *DefaultService) GetUserProfile(ctx context.Context, id string) (*models.User, error) {
	return s.GetCurrentUser(ctx, id)
}

func (s *DefaultService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if req.Bio != nil && len(*req.Bio) > 500 {
		return nil, apperrors.Validation("Bio must not exceed 500 characters")
	}

	return s.repo.UpdateUserProfile(ctx, userID, req.Bio, req.Skills)
}

func (s *DefaultService) GetLeaderboard(ctx context.Context, college string) ([]models.User, error) {
	if college == "" {
		return nil, apperrors.Validation("College parameter required")
	}

	if users, ok := s.leaderboard.Get(ctx, college); ok {
		return users, nil
	}

	users, err := s.repo.GetLeaderboard(ctx, college, leaderboardLimit)
	if err != nil {
		return nil, err
	}

	s.leaderboard.Set(ctx, college, users)
	return users, nil
}

func (s *DefaultService) GetCollegeUsers(ctx context.Context, college string) ([]models.User, error) {
	if college == "" {
		return nil, apperrors.Validation("College parameter required")
	}

	return s.repo.GetCollegeUsers(ctx, college)
}

// Activity methods

func (s *DefaultService) GetUserActivities(ctx context.Context, userID string) ([]models.Activity, error) {
	return s.repo.GetUserActivities(ctx, userID, userActivityLimit)
}

func (s *DefaultService) GetRecentActivities(ctx context.Context, college string) ([]models.ActivityFeedItem, error) {
	return s.repo.GetRecentActivities(ctx, college, recentActivityLimit)
}

// Helper methods

// record emits an audit entry through the best-effort recorder. A nil recorder
// disables the audit trail entirely.
func (s *DefaultService) record(entry *models.Activity) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(entry)
}

func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

var validRequestTypes = map[models.RequestType]bool{
	models.RequestTypeCodeReview:    true,
	models.RequestTypeBugFix:        true,
	models.RequestTypeGithubStar:    true,
	models.RequestTypeCollaboration: true,
	models.RequestTypeMentorship:    true,
	models.RequestTypeOther:         true,
}

// validateCreateRequest enforces the field constraints before any mutation
// occurs. Title and description are trimmed before length checks, matching
// what gets stored.
func validateCreateRequest(req *models.CreateRequestRequest) error {
	if !validRequestTypes[req.Type] {
		return apperrors.Validation("Invalid request type")
	}

	req.Title = strings.TrimSpace(req.Title)
	if len(req.Title) < 5 || len(req.Title) > 200 {
		return apperrors.Validation("Title must be between 5 and 200 characters")
	}

	req.Description = strings.TrimSpace(req.Description)
	if len(req.Description) < 20 || len(req.Description) > 2000 {
		return apperrors.Validation("Description must be between 20 and 2000 characters")
	}

	if req.HelpCredits < 1 || req.HelpCredits > 10 {
		return apperrors.Validation("Help credits must be between 1 and 10")
	}

	if req.RepoURL != "" {
		parsed, err := url.ParseRequestURI(req.RepoURL)
		if err != nil || parsed.Host == "" {
			return apperrors.Validation("Repository URL must be valid")
		}
	}

	return nil
}

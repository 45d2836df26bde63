package models

import (
	"time"

	"github.com/lib/pq"
)

// RequestType enumerates the kinds of help a user can ask for
type RequestType string

const (
	RequestTypeCodeReview    RequestType = "code_review"
	RequestTypeBugFix        RequestType = "bug_fix"
	RequestTypeGithubStar    RequestType = "github_star"
	RequestTypeCollaboration RequestType = "collaboration"
	RequestTypeMentorship    RequestType = "mentorship"
	RequestTypeOther         RequestType = "other"
)

// RequestStatus is the lifecycle state of a help request
type RequestStatus string

const (
	StatusOpen       RequestStatus = "open"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// ActivityType enumerates the audit events written by the request lifecycle
type ActivityType string

const (
	ActivityRequestCreated   ActivityType = "request_created"
	ActivityRequestAccepted  ActivityType = "request_accepted"
	ActivityRequestCompleted ActivityType = "request_completed"
	ActivityHelpProvided     ActivityType = "help_provided"
	ActivityKarmaEarned      ActivityType = "karma_earned"
)

// User represents a registered developer. KarmaPoints is the single point
// balance: spent when creating a request, earned when completing one as helper.
type User struct {
	ID            string         `db:"id" json:"id"`
	GithubID      string         `db:"github_id" json:"githubId"`
	Username      string         `db:"username" json:"username"`
	Email         string         `db:"email" json:"email"`
	Avatar        string         `db:"avatar" json:"avatar,omitempty"`
	College       string         `db:"college" json:"college"`
	KarmaPoints   int            `db:"karma_points" json:"karmaPoints"`
	GithubProfile string         `db:"github_profile" json:"githubProfile,omitempty"`
	Bio           string         `db:"bio" json:"bio,omitempty"`
	Skills        pq.StringArray `db:"skills" json:"skills"`
	IsActive      bool           `db:"is_active" json:"isActive"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// Request is a unit of requested help with a fixed reward (HelpCredits).
// HelperID is set if and only if status is in_progress or completed;
// CompletedAt is set if and only if status is completed.
type Request struct {
	ID          string         `db:"id" json:"id"`
	RequesterID string         `db:"requester_id" json:"requesterId"`
	HelperID    *string        `db:"helper_id" json:"helperId,omitempty"`
	Type        RequestType    `db:"type" json:"type"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	RepoURL     string         `db:"repo_url" json:"repoUrl,omitempty"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Status      RequestStatus  `db:"status" json:"status"`
	HelpCredits int            `db:"help_credits" json:"helpCredits"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
	CompletedAt *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
}

// Activity is an immutable audit entry recording a lifecycle transition.
type Activity struct {
	ID               string       `db:"id" json:"id"`
	UserID           string       `db:"user_id" json:"userId"`
	Type             ActivityType `db:"type" json:"type"`
	Description      string       `db:"description" json:"description"`
	RelatedRequestID *string      `db:"related_request_id" json:"relatedRequestId,omitempty"`
	PointsEarned     int          `db:"points_earned" json:"pointsEarned"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
}

// UserRef is a resolved subset of a user joined onto another row. Consumers
// hold either a bare user ID (e.g. Request.RequesterID) or a UserRef; a value
// never has an ambiguous shape.
type UserRef struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Avatar   string `db:"avatar" json:"avatar,omitempty"`
	College  string `db:"college" json:"college"`
}

// RequestWithOwner is a request with its requester resolved, as served by the
// open-requests listing.
type RequestWithOwner struct {
	Request
	Requester UserRef `db:"owner" json:"requester"`
}

// ActivityFeedItem is an activity with its actor resolved, as served by the
// recent-activity feed.
type ActivityFeedItem struct {
	Activity
	Actor UserRef `db:"actor" json:"user"`
}

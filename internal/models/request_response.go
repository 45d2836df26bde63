package models

// Request models
type CreateRequestRequest struct {
	Type        RequestType `json:"type" binding:"required,oneof=code_review bug_fix github_star collaboration mentorship other"`
	Title       string      `json:"title" binding:"required,min=5,max=200"`
	Description string      `json:"description" binding:"required,min=20,max=2000"`
	RepoURL     string      `json:"repoUrl" binding:"omitempty,url"`
	Tags        []string    `json:"tags"`
	HelpCredits int         `json:"helpCredits" binding:"required,min=1,max=10"`
}

type UpdateProfileRequest struct {
	Bio    *string  `json:"bio" binding:"omitempty,max=500"`
	Skills []string `json:"skills"`
}

// Response models
type AuthURLResponse struct {
	URL string `json:"url"`
}

type AuthResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	User   *User  `json:"user,omitempty"`
}

type BalanceResponse struct {
	Status      string `json:"status"`
	UserID      string `json:"userId"`
	KarmaPoints int    `json:"karmaPoints"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/devcircle/devcircle-server/internal/apperrors"
	"github.com/devcircle/devcircle-server/internal/models"
)

// memRepository is an in-memory Repository with the same transition semantics
// as the Postgres implementation: conditional status updates and a guarded
// balance debit, each applied atomically under one lock.
type memRepository struct {
	mu         sync.Mutex
	users      map[string]*models.User
	requests   map[string]*models.Request
	activities []*models.Activity
}

func newMemRepository() *memRepository {
	return &memRepository{
		users:    make(map[string]*models.User),
		requests: make(map[string]*models.Request),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Skills = append(pq.StringArray{}, u.Skills...)
	return &c
}

func copyRequest(r *models.Request) *models.Request {
	c := *r
	c.Tags = append(pq.StringArray{}, r.Tags...)
	if r.HelperID != nil {
		h := *r.HelperID
		c.HelperID = &h
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (m *memRepository) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *memRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (m *memRepository) GetUserByGithubID(_ context.Context, githubID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.GithubID == githubID {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (m *memRepository) UpdateUserProfile(_ context.Context, id string, bio *string, skills []string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	if bio != nil {
		u.Bio = *bio
	}
	if skills != nil {
		u.Skills = append(pq.StringArray{}, skills...)
	}
	u.UpdatedAt = time.Now().UTC()
	return copyUser(u), nil
}

func (m *memRepository) GetLeaderboard(_ context.Context, college string, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := []models.User{}
	for _, u := range m.users {
		if u.College == college && u.IsActive {
			users = append(users, *copyUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].KarmaPoints > users[j].KarmaPoints })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *memRepository) GetCollegeUsers(_ context.Context, college string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := []models.User{}
	for _, u := range m.users {
		if u.College == college && u.IsActive {
			users = append(users, *copyUser(u))
		}
	}
	return users, nil
}

func (m *memRepository) AdjustBalance(_ context.Context, userID string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, apperrors.ErrUserNotFound
	}
	u.KarmaPoints += delta
	return u.KarmaPoints, nil
}

func (m *memRepository) CreateRequest(_ context.Context, request *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[request.RequesterID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if u.KarmaPoints < request.HelpCredits {
		return apperrors.ErrInsufficientBalance
	}
	u.KarmaPoints -= request.HelpCredits

	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	request.Status = models.StatusOpen
	request.CreatedAt = now
	request.UpdatedAt = now
	if request.Tags == nil {
		request.Tags = pq.StringArray{}
	}
	m.requests[request.ID] = copyRequest(request)
	return nil
}

func (m *memRepository) GetRequestByID(_ context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return copyRequest(r), nil
}

func (m *memRepository) GetOpenRequests(_ context.Context, college string) ([]models.RequestWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := []models.RequestWithOwner{}
	for _, r := range m.requests {
		if r.Status != models.StatusOpen {
			continue
		}
		owner := m.users[r.RequesterID]
		if college != "" && owner.College != college {
			continue
		}
		requests = append(requests, models.RequestWithOwner{
			Request: *copyRequest(r),
			Requester: models.UserRef{
				ID:       owner.ID,
				Username: owner.Username,
				Avatar:   owner.Avatar,
				College:  owner.College,
			},
		})
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

func (m *memRepository) GetRequestsByRequester(_ context.Context, userID string) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := []models.Request{}
	for _, r := range m.requests {
		if r.RequesterID == userID {
			requests = append(requests, *copyRequest(r))
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

func (m *memRepository) GetRequestsByHelper(_ context.Context, userID string) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := []models.Request{}
	for _, r := range m.requests {
		if r.HelperID != nil && *r.HelperID == userID {
			requests = append(requests, *copyRequest(r))
		}
	}
	return requests, nil
}

func (m *memRepository) AcceptRequest(_ context.Context, requestID, helperID string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[requestID]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	if r.Status != models.StatusOpen {
		return nil, apperrors.ErrRequestNotOpen
	}
	helper := helperID
	r.HelperID = &helper
	r.Status = models.StatusInProgress
	r.UpdatedAt = time.Now().UTC()
	return copyRequest(r), nil
}

func (m *memRepository) CompleteRequest(_ context.Context, requestID string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[requestID]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	if r.Status != models.StatusInProgress {
		return nil, apperrors.ErrRequestNotInProgress
	}
	now := time.Now().UTC()
	r.Status = models.StatusCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
	if r.HelperID != nil {
		if helper, ok := m.users[*r.HelperID]; ok {
			helper.KarmaPoints += r.HelpCredits
		}
	}
	return copyRequest(r), nil
}

func (m *memRepository) CancelRequest(_ context.Context, requestID string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[requestID]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	switch r.Status {
	case models.StatusCompleted:
		return nil, apperrors.ErrRequestCompleted
	case models.StatusCancelled:
		return nil, apperrors.ErrRequestCancelled
	}
	r.Status = models.StatusCancelled
	r.UpdatedAt = time.Now().UTC()
	if requester, ok := m.users[r.RequesterID]; ok {
		requester.KarmaPoints += r.HelpCredits
	}
	return copyRequest(r), nil
}

func (m *memRepository) CreateActivity(_ context.Context, activity *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	entry := *activity
	m.activities = append(m.activities, &entry)
	return nil
}

func (m *memRepository) GetUserActivities(_ context.Context, userID string, limit int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activities := []models.Activity{}
	for i := len(m.activities) - 1; i >= 0 && len(activities) < limit; i-- {
		if m.activities[i].UserID == userID {
			activities = append(activities, *m.activities[i])
		}
	}
	return activities, nil
}

func (m *memRepository) GetRecentActivities(_ context.Context, college string, limit int) ([]models.ActivityFeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []models.ActivityFeedItem{}
	for i := len(m.activities) - 1; i >= 0 && len(items) < limit; i-- {
		a := m.activities[i]
		actor, ok := m.users[a.UserID]
		if !ok || (college != "" && actor.College != college) {
			continue
		}
		items = append(items, models.ActivityFeedItem{
			Activity: *a,
			Actor: models.UserRef{
				ID:       actor.ID,
				Username: actor.Username,
				Avatar:   actor.Avatar,
				College:  actor.College,
			},
		})
	}
	return items, nil
}

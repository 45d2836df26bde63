package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devcircle/devcircle-server/internal/apperrors"
	"github.com/devcircle/devcircle-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByGithubID(ctx context.Context, githubID string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id string, bio *string, skills []string) (*models.User, error)
	GetLeaderboard(ctx context.Context, college string, limit int) ([]models.User, error)
	GetCollegeUsers(ctx context.Context, college string) ([]models.User, error)

	// Ledger operation. The increment is a single atomic statement at the
	// storage layer so concurrent adjustments never lose updates.
	AdjustBalance(ctx context.Context, userID string, delta int) (int, error)

	// Request lifecycle operations. The state transitions are conditional
	// updates; CreateRequest, CompleteRequest and CancelRequest pair the
	// transition with the balance movement in one transaction.
	CreateRequest(ctx context.Context, request *models.Request) error
	GetRequestByID(ctx context.Context, id string) (*models.Request, error)
	GetOpenRequests(ctx context.Context, college string) ([]models.RequestWithOwner, error)
	GetRequestsByRequester(ctx context.Context, userID string) ([]models.Request, error)
	GetRequestsByHelper(ctx context.Context, userID string) ([]models.Request, error)
	AcceptRequest(ctx context.Context, requestID, helperID string) (*models.Request, error)
	CompleteRequest(ctx context.Context, requestID string) (*models.Request, error)
	CancelRequest(ctx context.Context, requestID string) (*models.Request, error)

	// Activity operations
	CreateActivity(ctx context.Context, activity *models.Activity) error
	GetUserActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error)
	GetRecentActivities(ctx context.Context, college string, limit int) ([]models.ActivityFeedItem, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, github_id, username, email, avatar, college, karma_points,
			github_profile, bio, skills, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	if user.Skills == nil {
		user.Skills = pq.StringArray{}
	}

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.GithubID, user.Username, user.Email, user.Avatar, user.College,
		user.KarmaPoints, user.GithubProfile, user.Bio, user.Skills, user.IsActive,
		user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByGithubID(ctx context.Context, githubID string) (*models.User, error) {
	query := `SELECT * FROM users WHERE github_id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, githubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id string, bio *string, skills []string) (*models.User, error) {
	query := `
		UPDATE users
		SET bio = COALESCE($1, bio),
			skills = COALESCE($2, skills),
			updated_at = $3
		WHERE id = $4
		RETURNING *
	`

	var skillsArg interface{}
	if skills != nil {
		skillsArg = pq.StringArray(skills)
	}

	var user models.User
	err := r.db.GetContext(ctx, &user, query, bio, skillsArg, time.Now().UTC(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetLeaderboard(ctx context.Context, college string, limit int) ([]models.User, error) {
	query := `
		SELECT * FROM users
		WHERE college = $1 AND is_active = TRUE
		ORDER BY karma_points DESC
		LIMIT $2
	`

	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, query, college, limit)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *PostgresRepository) GetCollegeUsers(ctx context.Context, college string) ([]models.User, error) {
	query := `SELECT * FROM users WHERE college = $1 AND is_active = TRUE`

	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, query, college)
	if err != nil {
		return nil, err
	}

	return users, nil
}

// AdjustBalance applies delta to the user's karma balance as a single atomic
// increment and returns the updated balance. The ledger enforces no floor;
// bound checks belong to the caller.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, userID string, delta int) (int, error) {
	query := `
		UPDATE users
		SET karma_points = karma_points + $1, updated_at = $2
		WHERE id = $3
		RETURNING karma_points
	`

	var balance int
	err := r.db.QueryRowContext(ctx, query, delta, time.Now().UTC(), userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.ErrUserNotFound
		}
		return 0, err
	}

	return balance, nil
}

// Request repository methods

// CreateRequest persists a new open request and debits the requester's balance
// in one transaction. The debit is guarded (karma_points >= help_credits) so
// two concurrent creates can never overdraw the same user.
func (r *PostgresRepository) CreateRequest(ctx context.Context, request *models.Request) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	now := time.Now().UTC()

	// Guarded atomic debit
	res, err := tx.ExecContext(ctx,
		`UPDATE users
		SET karma_points = karma_points - $1, updated_at = $2
		WHERE id = $3 AND karma_points >= $1`,
		request.HelpCredits, now, request.RequesterID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		// Distinguish a missing user from an insufficient balance
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, request.RequesterID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			err = apperrors.ErrUserNotFound
			return err
		}
		err = apperrors.ErrInsufficientBalance
		return err
	}

	// Generate a new UUID if not provided
	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	request.Status = models.StatusOpen
	request.CreatedAt = now
	request.UpdatedAt = now
	if request.Tags == nil {
		request.Tags = pq.StringArray{}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO requests (id, requester_id, type, title, description, repo_url, tags,
			status, help_credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		request.ID, request.RequesterID, request.Type, request.Title, request.Description,
		request.RepoURL, request.Tags, request.Status, request.HelpCredits,
		request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetRequestByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT * FROM requests WHERE id = $1`

	var request models.Request
	err := r.db.GetContext(ctx, &request, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Request not found
		}
		return nil, err
	}

	return &request, nil
}

func (r *PostgresRepository) GetOpenRequests(ctx context.Context, college string) ([]models.RequestWithOwner, error) {
	query := `
		SELECT r.*,
			u.id AS "owner.id",
			u.username AS "owner.username",
			u.avatar AS "owner.avatar",
			u.college AS "owner.college"
		FROM requests r
		JOIN users u ON u.id = r.requester_id
		WHERE r.status = 'open'
	`

	args := []interface{}{}
	if college != "" {
		query += ` AND u.college = $1`
		args = append(args, college)
	}

	query += ` ORDER BY r.created_at DESC`

	requests := []models.RequestWithOwner{}
	err := r.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (r *PostgresRepository) GetRequestsByRequester(ctx context.Context, userID string) ([]models.Request, error) {
	query := `SELECT * FROM requests WHERE requester_id = $1 ORDER BY created_at DESC`

	requests := []models.Request{}
	err := r.db.SelectContext(ctx, &requests, query, userID)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (r *PostgresRepository) GetRequestsByHelper(ctx context.Context, userID string) ([]models.Request, error) {
	query := `SELECT * FROM requests WHERE helper_id = $1 ORDER BY created_at DESC`

	requests := []models.Request{}
	err := r.db.SelectContext(ctx, &requests, query, userID)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

// AcceptRequest assigns the helper and moves the request to in_progress. The
// update only applies while the status is still open, so out of any number of
// concurrent accepts exactly one commits; the rest see "not open".
func (r *PostgresRepository) AcceptRequest(ctx context.Context, requestID, helperID string) (*models.Request, error) {
	query := `
		UPDATE requests
		SET helper_id = $1, status = 'in_progress', updated_at = $2
		WHERE id = $3 AND status = 'open'
		RETURNING *
	`

	var request models.Request
	err := r.db.GetContext(ctx, &request, query, helperID, time.Now().UTC(), requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.transitionError(ctx, requestID, apperrors.ErrRequestNotOpen)
		}
		return nil, err
	}

	return &request, nil
}

// CompleteRequest moves an in_progress request to completed and credits the
// helper's balance, both in one transaction.
func (r *PostgresRepository) CompleteRequest(ctx context.Context, requestID string) (*models.Request, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	now := time.Now().UTC()

	var request models.Request
	err = tx.GetContext(ctx, &request,
		`UPDATE requests
		SET status = 'completed', completed_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'in_progress'
		RETURNING *`,
		now, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.transitionError(ctx, requestID, apperrors.ErrRequestNotInProgress)
		}
		return nil, err
	}

	if request.HelperID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET karma_points = karma_points + $1, updated_at = $2 WHERE id = $3`,
			request.HelpCredits, now, *request.HelperID)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &request, nil
}

// CancelRequest moves an open or in_progress request to cancelled and refunds
// the requester's original debit, both in one transaction. The condition on
// status makes the refund happen at most once even under concurrent cancels.
func (r *PostgresRepository) CancelRequest(ctx context.Context, requestID string) (*models.Request, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	now := time.Now().UTC()

	var request models.Request
	err = tx.GetContext(ctx, &request,
		`UPDATE requests
		SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND status IN ('open', 'in_progress')
		RETURNING *`,
		now, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.cancelError(ctx, requestID)
		}
		return nil, err
	}

	// Refund the original debit. An assigned helper receives nothing.
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET karma_points = karma_points + $1, updated_at = $2 WHERE id = $3`,
		request.HelpCredits, now, request.RequesterID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &request, nil
}

// transitionError resolves a zero-row conditional update to the right typed
// error: the request is either absent or in the wrong state.
func (r *PostgresRepository) transitionError(ctx context.Context, requestID string, stateErr error) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)`, requestID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrRequestNotFound
	}
	return stateErr
}

// cancelError resolves a zero-row cancel to the terminal state that blocked it.
func (r *PostgresRepository) cancelError(ctx context.Context, requestID string) error {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM requests WHERE id = $1`, requestID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	if status == string(models.StatusCancelled) {
		return apperrors.ErrRequestCancelled
	}
	return apperrors.ErrRequestCompleted
}

// Activity repository methods
func (r *PostgresRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	query := `
		INSERT INTO activities (id, user_id, type, description, related_request_id, points_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Generate a new UUID if not provided
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		activity.ID, activity.UserID, activity.Type, activity.Description,
		activity.RelatedRequestID, activity.PointsEarned, activity.CreatedAt)

	return err
}

func (r *PostgresRepository) GetUserActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	query := `
		SELECT * FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	activities := []models.Activity{}
	err := r.db.SelectContext(ctx, &activities, query, userID, limit)
	if err != nil {
		return nil, err
	}

	return activities, nil
}

func (r *PostgresRepository) GetRecentActivities(ctx context.Context, college string, limit int) ([]models.ActivityFeedItem, error) {
	query := `
		SELECT a.*,
			u.id AS "actor.id",
			u.username AS "actor.username",
			u.avatar AS "actor.avatar",
			u.college AS "actor.college"
		FROM activities a
		JOIN users u ON u.id = a.user_id
	`

	args := []interface{}{}
	if college != "" {
		query += ` WHERE u.college = $1`
		args = append(args, college)
	}

	args = append(args, limit)
	if college != "" {
		query += ` ORDER BY a.created_at DESC LIMIT $2`
	} else {
		query += ` ORDER BY a.created_at DESC LIMIT $1`
	}

	activities := []models.ActivityFeedItem{}
	err := r.db.SelectContext(ctx, &activities, query, args...)
	if err != nil {
		return nil, err
	}

	return activities, nil
}

package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcircle/devcircle-server/internal/api/testutils"
	"github.com/devcircle/devcircle-server/internal/models"
)

func fetchActivities(t *testing.T, testCtx *testutils.TestContext, token string) []models.Activity {
	t.Helper()

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/activities/my", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var activities []models.Activity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activities))
	return activities
}

func TestActivityFeed(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	requester, requesterToken := testCtx.CreateUser(t, "feed_requester", 10)
	helper, helperToken := testCtx.CreateUser(t, "feed_helper", 10)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/requests",
		createRequestBody(nil),
		testutils.AuthHeaders(requesterToken),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/requests/%s/accept", created.ID),
		nil,
		testutils.AuthHeaders(helperToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/requests/%s/complete", created.ID),
		nil,
		testutils.AuthHeaders(requesterToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	// Entries are written asynchronously, so poll until the feed settles
	assert.Eventually(t, func() bool {
		return len(fetchActivities(t, testCtx, requesterToken)) == 2
	}, 3*time.Second, 50*time.Millisecond, "requester feed should settle at two entries")

	requesterTypes := make([]models.ActivityType, 0, 2)
	for _, a := range fetchActivities(t, testCtx, requesterToken) {
		assert.Equal(t, requester.ID, a.UserID)
		requesterTypes = append(requesterTypes, a.Type)
	}
	assert.ElementsMatch(t,
		[]models.ActivityType{models.ActivityRequestCreated, models.ActivityRequestCompleted},
		requesterTypes,
	)

	assert.Eventually(t, func() bool {
		return len(fetchActivities(t, testCtx, helperToken)) == 2
	}, 3*time.Second, 50*time.Millisecond, "helper feed should settle at two entries")

	var helpProvided *models.Activity
	for _, a := range fetchActivities(t, testCtx, helperToken) {
		assert.Equal(t, helper.ID, a.UserID)
		if a.Type == models.ActivityHelpProvided {
			entry := a
			helpProvided = &entry
		}
	}
	require.NotNil(t, helpProvided, "helper should have a help_provided entry")
	assert.Equal(t, created.HelpCredits, helpProvided.PointsEarned)
	require.NotNil(t, helpProvided.RelatedRequestID)
	assert.Equal(t, created.ID, *helpProvided.RelatedRequestID)
}

func TestRecentActivityFeed(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	requester, requesterToken := testCtx.CreateUser(t, "recent_requester", 10)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/requests",
		createRequestBody(nil),
		testutils.AuthHeaders(requesterToken),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Eventually(t, func() bool {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodGet,
			fmt.Sprintf("/api/activities/recent?college=%s", testutils.TestCollege),
			nil,
			nil,
		)
		if w.Code != http.StatusOK {
			return false
		}

		var feed []models.ActivityFeedItem
		if err := json.Unmarshal(w.Body.Bytes(), &feed); err != nil {
			return false
		}
		return len(feed) == 1 &&
			feed[0].Type == models.ActivityRequestCreated &&
			feed[0].Actor.Username == requester.Username
	}, 3*time.Second, 50*time.Millisecond, "recent feed should carry the new entry with its actor")
}

func TestCancelLeavesNoTrace(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	_, requesterToken := testCtx.CreateUser(t, "silent_requester", 10)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/requests",
		createRequestBody(nil),
		testutils.AuthHeaders(requesterToken),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/requests/%s/cancel", created.ID),
		nil,
		testutils.AuthHeaders(requesterToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	// Only the creation entry ever lands; cancelling is not recorded
	assert.Eventually(t, func() bool {
		return len(fetchActivities(t, testCtx, requesterToken)) == 1
	}, 3*time.Second, 50*time.Millisecond)

	activities := fetchActivities(t, testCtx, requesterToken)
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActivityRequestCreated, activities[0].Type)
}

package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcircle/devcircle-server/internal/api/testutils"
	"github.com/devcircle/devcircle-server/internal/models"
)

func TestConcurrentAcceptsOverHTTP(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	_, requesterToken := testCtx.CreateUser(t, "race_requester", 10)

	const numHelpers = 10
	helperTokens := make([]string, numHelpers)
	for i := 0; i < numHelpers; i++ {
		_, token := testCtx.CreateUser(t, fmt.Sprintf("race_helper_%d", i), 10)
		helperTokens[i] = token
	}

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
	acceptPath := fmt.Sprintf("/api/requests/%s/accept", created.ID)

	// All helpers race for the same request
	statusChan := make(chan int, numHelpers)
	var wg sync.WaitGroup

	for i := 0; i < numHelpers; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			w := testutils.PerformRequest(
				testCtx.Router,
				http.MethodPost,
				acceptPath,
				nil,
				testutils.AuthHeaders(token),
			)
			statusChan <- w.Code
		}(helperTokens[i])
	}

	wg.Wait()
	close(statusChan)

	successes := 0
	conflicts := 0
	for code := range statusChan {
		switch code {
		case http.StatusOK:
			successes++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status code %d", code)
		}
	}

	assert.Equal(t, 1, successes, "exactly one helper should win the race")
	assert.Equal(t, numHelpers-1, conflicts)

	request, err := testCtx.Repository.GetRequestByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.Equal(t, models.StatusInProgress, request.Status)
	assert.NotNil(t, request.HelperID)
}

func TestConcurrentCreatesNeverOverdraw(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	user, token := testCtx.CreateUser(t, "overdraft_requester", 10)

	// Two 6-credit requests from a 10-point balance: only one may succeed
	const numAttempts = 2
	statusChan := make(chan int, numAttempts)
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w := testutils.PerformRequest(
				testCtx.Router,
				http.MethodPost,
				"/api/requests",
				createRequestBody(map[string]interface{}{"helpCredits": 6}),
				testutils.AuthHeaders(token),
			)
			statusChan <- w.Code
		}()
	}

	wg.Wait()
	close(statusChan)

	successes := 0
	for code := range statusChan {
		if code == http.StatusCreated {
			successes++
		}
	}
	assert.Equal(t, 1, successes)

	refreshed, err := testCtx.Repository.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, refreshed.KarmaPoints)
	assert.GreaterOrEqual(t, refreshed.KarmaPoints, 0)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"ace/internal/common"
	"ace/internal/engine/broadcast"
	"ace/internal/server/dao"
	"ace/internal/server/model"
	"ace/pkg/api"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "handler_test.db")
	require.NoError(t, dao.Init(sqlite.Open("file:"+path+"?_busy_timeout=5000")))
	Init(broadcast.New(), nil)

	r := gin.New()
	r.POST("/task", SubmitTask)
	r.GET("/task", ListTasks)
	r.GET("/task/:id", GetTask)
	r.POST("/task/:id/cancel", CancelTask)
	r.GET("/run/:run_id", GetRun)
	r.GET("/stats", QueueStats)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload interface{}) (*httptest.ResponseRecorder, common.Response) {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestSubmitTaskSuccess(t *testing.T) {
	r := setupRouter(t)
	_, resp := doJSON(t, r, http.MethodPost, "/task", api.SubmitTaskRequest{
		Title:       "add pagination",
		Description: "paginate the list endpoint",
		Category:    model.CategoryFeature,
		Priority:    2,
	})
	require.Equal(t, common.SuccessCode, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "add pagination", data["title"])
	assert.Equal(t, model.TaskStatusPending, data["status"])
	assert.Equal(t, float64(2), data["priority"])
}

func TestSubmitTaskDefaultsPriority(t *testing.T) {
	r := setupRouter(t)
	_, resp := doJSON(t, r, http.MethodPost, "/task", api.SubmitTaskRequest{
		Title:       "no priority given",
		Description: "something",
		Category:    model.CategoryBug,
	})
	require.Equal(t, common.SuccessCode, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(5), data["priority"])
}

func TestSubmitTaskValidation(t *testing.T) {
	r := setupRouter(t)

	cases := []api.SubmitTaskRequest{
		{Title: "ab", Description: "desc", Category: model.CategoryBug, Priority: 5},
		{Title: "valid title", Description: "", Category: model.CategoryBug, Priority: 5},
		{Title: "valid title", Description: "desc", Category: "chore", Priority: 5},
		{Title: "valid title", Description: "desc", Category: model.CategoryBug, Priority: 11},
		{Title: "valid title", Description: "desc", Category: model.CategoryBug, Priority: -1},
	}
	for _, req := range cases {
		_, resp := doJSON(t, r, http.MethodPost, "/task", req)
		assert.Equal(t, common.ValidationFailed, resp.Code, "request %+v", req)
	}

	// rejected submissions never hit the queue
	_, listResp := doJSON(t, r, http.MethodGet, "/task", nil)
	require.Equal(t, common.SuccessCode, listResp.Code)
	list := listResp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), list["total"])
}

func TestSubmitTaskTitleLengthCountsRunes(t *testing.T) {
	r := setupRouter(t)

	// two characters, six bytes: still too short
	_, resp := doJSON(t, r, http.MethodPost, "/task", api.SubmitTaskRequest{
		Title:       "修复",
		Description: "desc",
		Category:    model.CategoryBug,
		Priority:    5,
	})
	assert.Equal(t, common.ValidationFailed, resp.Code)

	_, resp = doJSON(t, r, http.MethodPost, "/task", api.SubmitTaskRequest{
		Title:       "修复死锁",
		Description: "desc",
		Category:    model.CategoryBug,
		Priority:    5,
	})
	assert.Equal(t, common.SuccessCode, resp.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	r := setupRouter(t)
	_, resp := doJSON(t, r, http.MethodGet, "/task/999", nil)
	assert.Equal(t, common.TaskNotExists, resp.Code)
}

func TestCancelTaskTwice(t *testing.T) {
	r := setupRouter(t)
	_, submitResp := doJSON(t, r, http.MethodPost, "/task", api.SubmitTaskRequest{
		Title:       "cancel me",
		Description: "desc",
		Category:    model.CategoryTest,
		Priority:    5,
	})
	require.Equal(t, common.SuccessCode, submitResp.Code)
	id := submitResp.Data.(map[string]interface{})["id"].(float64)

	path := "/task/" + jsonNumber(id) + "/cancel"
	_, first := doJSON(t, r, http.MethodPost, path, nil)
	assert.Equal(t, common.SuccessCode, first.Code)
	_, second := doJSON(t, r, http.MethodPost, path, nil)
	assert.Equal(t, common.SuccessCode, second.Code)

	_, got := doJSON(t, r, http.MethodGet, "/task/"+jsonNumber(id), nil)
	require.Equal(t, common.SuccessCode, got.Code)
	detail := got.Data.(map[string]interface{})
	assert.Equal(t, model.TaskStatusCancelled, detail["status"])
}

func TestGetRunNotFound(t *testing.T) {
	r := setupRouter(t)
	_, resp := doJSON(t, r, http.MethodGet, "/run/not-a-run", nil)
	assert.Equal(t, common.RunNotExists, resp.Code)
}

func claimedRun(t *testing.T, title string, priority int) *model.Run {
	t.Helper()
	ctx := context.Background()
	task := &model.Task{
		Title:       title,
		Description: "desc",
		Category:    model.CategoryBug,
		Priority:    priority,
		Status:      model.TaskStatusPending,
	}
	require.NoError(t, dao.NewTaskDao().Create(ctx, task))
	claimed, run, err := dao.NewTaskDao().ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	return run
}

func TestGetRunIncludesAlert(t *testing.T) {
	r := setupRouter(t)
	run := claimedRun(t, "escalated work", 3)

	require.NoError(t, dao.NewAlertDao().Create(context.Background(), &model.Alert{
		Rule:        "verification_exhausted",
		Severity:    model.SeverityHigh,
		Title:       "needs review",
		Message:     "details",
		Status:      model.AlertStatusFiring,
		RunUUID:     run.RunUUID,
		TriggeredAt: time.Now(),
	}))

	_, resp := doJSON(t, r, http.MethodGet, "/run/"+run.RunUUID, nil)
	require.Equal(t, common.SuccessCode, resp.Code)
	detail := resp.Data.(map[string]interface{})
	alert, ok := detail["alert"].(map[string]interface{})
	require.True(t, ok, "run detail should carry its alert")
	assert.Equal(t, model.SeverityHigh, alert["severity"])
	assert.Equal(t, run.RunUUID, alert["run_id"])
}

func TestGetRunWithoutAlertOmitsField(t *testing.T) {
	r := setupRouter(t)
	run := claimedRun(t, "quiet work", 5)

	_, resp := doJSON(t, r, http.MethodGet, "/run/"+run.RunUUID, nil)
	require.Equal(t, common.SuccessCode, resp.Code)
	detail := resp.Data.(map[string]interface{})
	_, ok := detail["alert"]
	assert.False(t, ok)
}

func TestQueueStats(t *testing.T) {
	r := setupRouter(t)
	for i := 0; i < 3; i++ {
		_, resp := doJSON(t, r, http.MethodPost, "/task", api.SubmitTaskRequest{
			Title:       "stat task",
			Description: "desc",
			Category:    model.CategoryDocs,
			Priority:    5,
		})
		require.Equal(t, common.SuccessCode, resp.Code)
	}

	_, resp := doJSON(t, r, http.MethodGet, "/stats", nil)
	require.Equal(t, common.SuccessCode, resp.Code)
	stats := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), stats["pending"])
}

func jsonNumber(f float64) string {
	return strconv.FormatUint(uint64(f), 10)
}

package handler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"ace/internal/common"
	"ace/internal/server/dao"
	"ace/internal/server/model"
	"ace/pkg/api"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	minTitleLen     = 3
	maxTitleLen     = 200
	defaultPriority = 5
)

func validateSubmit(req *api.SubmitTaskRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	// 长度按字符数不按字节数
	titleLen := utf8.RuneCountInString(req.Title)
	if titleLen < minTitleLen {
		return common.NewErrNoMsg(common.ValidationFailed, fmt.Sprintf("title must be at least %d characters", minTitleLen))
	}
	if titleLen > maxTitleLen {
		return common.NewErrNoMsg(common.ValidationFailed, fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if strings.TrimSpace(req.Description) == "" {
		return common.NewErrNoMsg(common.ValidationFailed, "description must not be empty")
	}
	if !model.ValidCategory(req.Category) {
		return common.NewErrNoMsg(common.ValidationFailed, "unknown category "+req.Category)
	}
	if req.Priority == 0 {
		req.Priority = defaultPriority
	}
	if req.Priority < 1 || req.Priority > 10 {
		return common.NewErrNoMsg(common.ValidationFailed, "priority must be between 1 and 10")
	}
	return nil
}

func SubmitTask(c *gin.Context) {
	var req api.SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}
	if err := validateSubmit(&req); err != nil {
		common.Error(c, err)
		return
	}

	taskDAO := dao.NewTaskDao()
	task := &model.Task{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      model.TaskStatusPending,
	}
	if err := taskDAO.Create(c, task); err != nil {
		common.Error(c, err)
		return
	}

	// 派发失败不回滚：task已落库，sweep会兜底捞起来
	if dispatcher != nil {
		if err := dispatcher.NotifySubmitted(task.ID); err != nil {
			common.GetLogger().Warn("dispatch after submit failed",
				zap.Uint("task_id", task.ID),
				zap.Error(err),
			)
		}
	}

	common.Success(c, taskView(task))
}

func GetTask(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}

	taskDAO := dao.NewTaskDao()
	task, err := taskDAO.GetByID(c, uint(id))
	if err != nil {
		common.Error(c, err)
		return
	}

	runDAO := dao.NewRunDao()
	runs, err := runDAO.GetByTaskID(c, task.ID)
	if err != nil {
		common.Error(c, err)
		return
	}

	detail := api.TaskDetail{
		TaskResponse: taskView(task),
		Description:  task.Description,
		Runs:         make([]api.RunBrief, 0, len(runs)),
	}
	for _, run := range runs {
		detail.Runs = append(detail.Runs, runBrief(run))
	}
	common.Success(c, detail)
}

func ListTasks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	taskDAO := dao.NewTaskDao()
	tasks, total, err := taskDAO.List(c, c.Query("status"), c.Query("category"), page, pageSize)
	if err != nil {
		common.Error(c, err)
		return
	}

	resp := api.TaskListResponse{
		Total: total,
		Tasks: make([]api.TaskResponse, 0, len(tasks)),
	}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, taskView(task))
	}
	common.Success(c, resp)
}

func CancelTask(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}

	taskDAO := dao.NewTaskDao()
	if err := taskDAO.Cancel(c, uint(id)); err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, nil)
}

func QueueStats(c *gin.Context) {
	taskDAO := dao.NewTaskDao()
	pending, err := taskDAO.CountPending(c)
	if err != nil {
		common.Error(c, common.NewErrNo(common.GetStatsFail))
		return
	}
	byStatus, byCategory, err := taskDAO.Stats(c)
	if err != nil {
		common.Error(c, common.NewErrNo(common.GetStatsFail))
		return
	}

	runDAO := dao.NewRunDao()
	active, err := runDAO.ListActive(c, "", 0)
	if err != nil {
		common.Error(c, common.NewErrNo(common.GetStatsFail))
		return
	}

	common.Success(c, api.QueueStats{
		Pending:    pending,
		ByStatus:   byStatus,
		ByCategory: byCategory,
		ActiveRuns: len(active),
	})
}

func taskView(task *model.Task) api.TaskResponse {
	return api.TaskResponse{
		ID:        task.ID,
		Title:     task.Title,
		Category:  task.Category,
		Priority:  task.Priority,
		Status:    task.Status,
		CreatedAt: task.CreatedAt,
	}
}

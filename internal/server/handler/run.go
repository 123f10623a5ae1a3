package handler

import (
	"encoding/json"
	"strconv"

	"ace/internal/common"
	"ace/internal/server/dao"
	"ace/internal/server/model"
	"ace/pkg/api"

	"github.com/gin-gonic/gin"
)

func GetRun(c *gin.Context) {
	runDAO := dao.NewRunDao()
	run, err := runDAO.GetByUUID(c, c.Param("run_id"))
	if err != nil {
		common.Error(c, err)
		return
	}

	verificationDAO := dao.NewVerificationDao()
	recs, err := verificationDAO.ListByRun(c, run.RunUUID)
	if err != nil {
		common.Error(c, err)
		return
	}

	detail := api.RunDetail{
		RunBrief:             runBrief(run),
		TaskID:               run.TaskID,
		Capability:           run.Capability,
		Result:               run.Result,
		ErrorMessage:         run.ErrorMessage,
		VerificationAttempts: run.VerificationAttempts,
		Verifications:        make([]api.VerificationView, 0, len(recs)),
	}
	for _, rec := range recs {
		detail.Verifications = append(detail.Verifications, verificationView(rec))
	}

	// escalated run carries its alert in the detail
	alert, err := dao.NewAlertDao().GetByRunUUID(c, run.RunUUID)
	switch {
	case err == nil:
		view := alertView(alert)
		detail.Alert = &view
	case !common.IsErrCode(err, common.AlertNotExists):
		common.Error(c, err)
		return
	}
	common.Success(c, detail)
}

func ListRuns(c *gin.Context) {
	var taskID uint
	if raw := c.Query("task_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			common.Error(c, common.NewErrNo(common.RequestInvalid))
			return
		}
		taskID = uint(parsed)
	}

	runDAO := dao.NewRunDao()
	runs, err := runDAO.ListActive(c, c.Query("status"), taskID)
	if err != nil {
		common.Error(c, err)
		return
	}

	briefs := make([]api.RunBrief, 0, len(runs))
	for _, run := range runs {
		briefs = append(briefs, runBrief(run))
	}
	common.Success(c, briefs)
}

func runBrief(run *model.Run) api.RunBrief {
	return api.RunBrief{
		RunID:           run.RunUUID,
		Status:          run.Status,
		ProgressPercent: run.ProgressPercent,
		CurrentStep:     run.CurrentStep,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
	}
}

func verificationView(rec *model.VerificationRecord) api.VerificationView {
	view := api.VerificationView{
		Attempt:  rec.Attempt,
		Passed:   rec.Passed,
		Checks:   map[string]bool{},
		Evidence: rec.Evidence,
	}
	// Checks和Errors按JSON落库，坏数据只影响展示
	_ = json.Unmarshal([]byte(rec.Checks), &view.Checks)
	_ = json.Unmarshal([]byte(rec.Errors), &view.Errors)
	return view
}

package handler

import (
	"strconv"

	"ace/internal/common"
	"ace/internal/server/dao"
	"ace/internal/server/model"
	"ace/pkg/api"

	"github.com/gin-gonic/gin"
)

func ListAlerts(c *gin.Context) {
	alertDAO := dao.NewAlertDao()
	alerts, err := alertDAO.List(c, c.Query("status"))
	if err != nil {
		common.Error(c, err)
		return
	}

	views := make([]api.AlertView, 0, len(alerts))
	for _, alert := range alerts {
		views = append(views, alertView(alert))
	}
	common.Success(c, views)
}

func AcknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}
	alertDAO := dao.NewAlertDao()
	if err := alertDAO.Acknowledge(c, uint(id)); err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, nil)
}

func ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}
	alertDAO := dao.NewAlertDao()
	if err := alertDAO.Resolve(c, uint(id)); err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, nil)
}

func alertView(alert *model.Alert) api.AlertView {
	return api.AlertView{
		ID:             alert.ID,
		Rule:           alert.Rule,
		Severity:       alert.Severity,
		Title:          alert.Title,
		Message:        alert.Message,
		Status:         alert.Status,
		RunID:          alert.RunUUID,
		TriggeredAt:    alert.TriggeredAt,
		AcknowledgedAt: alert.AcknowledgedAt,
		ResolvedAt:     alert.ResolvedAt,
	}
}

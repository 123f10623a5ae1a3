package handler

import (
	"io"

	"ace/internal/common"
	"ace/internal/engine/broadcast"
	"ace/internal/server/dao"
	"ace/internal/server/model"

	"github.com/gin-gonic/gin"
)

// SubscribeRun streams run progress events over SSE. `run_id` selects one
// run; `*` subscribes to everything. A single-run stream closes itself
// once the run reaches a terminal state.
func SubscribeRun(c *gin.Context) {
	if bus == nil {
		common.Error(c, common.NewErrNo(common.SubscribeFail))
		return
	}
	runID := c.Param("run_id")

	var current *model.Run
	if runID != broadcast.AllRuns {
		runDAO := dao.NewRunDao()
		run, err := runDAO.GetByUUID(c, runID)
		if err != nil {
			common.Error(c, err)
			return
		}
		current = run
	}

	events, cancel := bus.Subscribe(runID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// 先推一帧当前快照，订阅者不用等下一次变更
	if current != nil {
		c.SSEvent("progress", snapshotEvent(current))
		c.Writer.Flush()
		if model.IsTerminalRunStatus(current.Status) {
			return
		}
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", ev)
			if runID != broadcast.AllRuns && model.IsTerminalRunStatus(ev.Status) {
				return false
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func snapshotEvent(run *model.Run) broadcast.Event {
	return broadcast.Event{
		RunUUID:         run.RunUUID,
		TaskID:          run.TaskID,
		Status:          run.Status,
		ProgressPercent: run.ProgressPercent,
		CurrentStep:     run.CurrentStep,
		Timestamp:       run.UpdatedAt,
	}
}

package handlers

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	Reports ReportService
}

func NewReportHandler(rs ReportService) *ReportHandler {
	return &ReportHandler{Reports: rs}
}

type reportQuery struct {
	JobID uint `form:"job_id"`
}

// Applications is GET /reports/applications.xlsx?job_id=
func (h *ReportHandler) Applications(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	data, err := h.Reports.ApplicationsWorkbook(c.Request.Context(), q.JobID)
	if err != nil {
		respondError(c, err)
		return
	}
	name := "applications.xlsx"
	if q.JobID != 0 {
		name = fmt.Sprintf("applications-job-%d.xlsx", q.JobID)
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, xlsxContentType, data)
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/attendance"
	"github.com/your-org/timeclock/internal/report"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/pkg/dto"
)

type ReportHandler struct {
	db  *storage.PostgresStore
	mio *storage.MinIOStore
	loc *time.Location
}

func NewReportHandler(db *storage.PostgresStore, minio *storage.MinIOStore, loc *time.Location) *ReportHandler {
	return &ReportHandler{db: db, mio: minio, loc: loc}
}

// Attendance returns the aggregated monthly report as JSON.
func (h *ReportHandler) Attendance(c *gin.Context) {
	rows, month, year, ok := h.aggregate(c)
	if !ok {
		return
	}

	resp := dto.ReportResponse{
		Month: int(month),
		Year:  year,
		Rows:  make([]dto.ReportRow, 0, len(rows)),
		Total: len(rows),
	}
	for _, r := range rows {
		resp.Rows = append(resp.Rows, dto.ReportRow{
			Date:        r.Date,
			Weekday:     r.Weekday,
			Name:        r.Name,
			Role:        r.Role,
			EntryFirst:  r.EntryFirst,
			ExitFirst:   r.ExitFirst,
			EntrySecond: r.EntrySecond,
			ExitSecond:  r.ExitSecond,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// AttendanceCSV streams the monthly report as a CSV download and keeps
// a copy of the artifact in object storage.
func (h *ReportHandler) AttendanceCSV(c *gin.Context) {
	rows, month, year, ok := h.aggregate(c)
	if !ok {
		return
	}

	data, err := report.RenderCSV(rows, month, year, time.Now().In(h.loc))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := report.Filename(month, year)
	if err := h.mio.PutObject(c.Request.Context(), "reports/"+filename, data, "text/csv"); err != nil {
		// The download still works; the archived copy is best effort.
		slog.Warn("archive report artifact", "error", err, "file", filename)
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

func (h *ReportHandler) aggregate(c *gin.Context) ([]attendance.Row, time.Month, int, bool) {
	var q dto.ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, 0, 0, false
	}

	month := time.Month(q.Month)
	from := time.Date(q.Year, month, 1, 0, 0, 0, 0, h.loc)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	employees, err := h.db.ListEmployees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, 0, 0, false
	}

	events, err := h.db.EventsBetween(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, 0, 0, false
	}

	rows, err := attendance.Aggregate(employees, events, month, q.Year, h.loc)
	if err != nil {
		if errors.Is(err, attendance.ErrEmptyPeriod) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return nil, 0, 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, 0, 0, false
	}

	return rows, month, q.Year, true
}

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/enroll"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/pkg/dto"
)

type EmployeeHandler struct {
	db        *storage.PostgresStore
	minio     *storage.MinIOStore
	validator *enroll.Validator
}

func NewEmployeeHandler(db *storage.PostgresStore, minio *storage.MinIOStore, validator *enroll.Validator) *EmployeeHandler {
	return &EmployeeHandler{db: db, minio: minio, validator: validator}
}

// Create enrolls a new employee. The request is multipart: first_name,
// last_name and role as form fields plus the reference photo in the
// "photo" file part. Enrollment fails when the photo has no detectable
// face, so every stored employee can be verified at the kiosk.
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req dto.CreateEmployeeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
		return
	}
	defer file.Close()

	photoData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
		return
	}

	descriptor, err := h.validator.Validate(c.Request.Context(), photoData)
	if err != nil {
		switch {
		case errors.Is(err, enroll.ErrNoFace):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, enroll.ErrExtraction):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	emp := &models.Employee{
		ID:         uuid.New(),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       req.Role,
		Descriptor: descriptor,
	}
	emp.PhotoKey = "photos/" + emp.ID.String() + "_" + header.Filename

	if err := h.minio.PutObject(c.Request.Context(), emp.PhotoKey, photoData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo failed"})
		return
	}

	if err := h.db.CreateEmployee(c.Request.Context(), emp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, employeeResponse(emp))
}

func (h *EmployeeHandler) List(c *gin.Context) {
	employees, err := h.db.ListEmployees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EmployeeResponse, 0, len(employees))
	for i := range employees {
		resp = append(resp, employeeResponse(&employees[i]))
	}

	c.JSON(http.StatusOK, dto.EmployeeListResponse{Employees: resp, Total: len(resp)})
}

func (h *EmployeeHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return
	}

	emp, err := h.db.GetEmployee(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if emp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}

	c.JSON(http.StatusOK, employeeResponse(emp))
}

// Photo streams the employee's reference photo from object storage.
func (h *EmployeeHandler) Photo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return
	}

	emp, err := h.db.GetEmployee(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if emp == nil || emp.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), emp.PhotoKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// Events returns the employee's recent attendance events, oldest first.
func (h *EmployeeHandler) Events(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return
	}

	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}

	events, err := h.db.EventsForEmployee(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventHistoryItem, 0, len(events))
	for _, ev := range events {
		item := dto.EventHistoryItem{
			ID:           ev.ID,
			EmployeeID:   ev.EmployeeID,
			Timestamp:    ev.Timestamp.Format(time.RFC3339),
			Kind:         string(ev.Kind),
			Verification: string(ev.Verification),
			Similarity:   ev.Similarity,
		}
		if ev.SnapshotKey != "" {
			item.SnapshotURL = "/v1/events/" + ev.ID.String() + "/snapshot"
		}
		resp = append(resp, item)
	}

	c.JSON(http.StatusOK, dto.EventHistoryResponse{Events: resp, Total: len(resp)})
}

func employeeResponse(emp *models.Employee) dto.EmployeeResponse {
	resp := dto.EmployeeResponse{
		ID:         emp.ID,
		FirstName:  emp.FirstName,
		LastName:   emp.LastName,
		Role:       emp.Role,
		Enrolled:   emp.Enrolled(),
		EnrolledAt: emp.EnrolledAt.Format(time.RFC3339),
	}
	if emp.PhotoKey != "" {
		resp.PhotoURL = "/v1/employees/" + emp.ID.String() + "/photo"
	}
	return resp
}

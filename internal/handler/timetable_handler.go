package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableManager interface {
	Configure(ctx context.Context, groupID, actorID string, req dto.ConfigureTimetableRequest) (*models.Group, error)
	AddSubject(ctx context.Context, groupID string, req dto.SubjectPayload) (*timetable.Subject, error)
	Generate(ctx context.Context, groupID, actorID string) (*dto.GenerateTimetableResponse, error)
	Update(ctx context.Context, groupID, actorID string, req dto.UpdateTimetableRequest) (*models.TimetableVersion, error)
	Get(ctx context.Context, groupID string) (types.JSONText, error)
	History(ctx context.Context, groupID string, query dto.TimetableHistoryQuery) ([]models.TimetableVersion, *models.Pagination, error)
	Export(ctx context.Context, groupID string, query dto.TimetableExportQuery) (*dto.ExportedFile, error)
}

type generationJobs interface {
	GenerateAsync(ctx context.Context, groupID, actorID string) (*models.GenerationJob, error)
	JobStatus(ctx context.Context, jobID string) (*models.GenerationJob, error)
}

// TimetableHandler exposes timetable configuration, generation and export endpoints.
type TimetableHandler struct {
	service timetableManager
	jobs    generationJobs
}

// NewTimetableHandler constructs the handler. jobs may be nil when
// asynchronous generation is disabled.
func NewTimetableHandler(svc *service.TimetableService, jobs *service.GenerationJobService) *TimetableHandler {
	h := &TimetableHandler{service: svc}
	if jobs != nil {
		h.jobs = jobs
	}
	return h
}

// Configure godoc
// @Summary Save the timetable configuration of a group
// @Description Replaces subjects, teachers, classes and settings. The configuration is checked when a timetable is generated. The caller becomes the owner of a new group.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.ConfigureTimetableRequest true "Timetable configuration"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id}/timetable/config [put]
func (h *TimetableHandler) Configure(c *gin.Context) {
	var req dto.ConfigureTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid configuration payload"))
		return
	}
	group, err := h.service.Configure(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// AddSubject godoc
// @Summary Add a subject to the group master list
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.SubjectPayload true "Subject"
// @Success 201 {object} response.Envelope
// @Router /groups/{id}/subjects [post]
func (h *TimetableHandler) AddSubject(c *gin.Context) {
	var req dto.SubjectPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	subject, err := h.service.AddSubject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Generate godoc
// @Summary Generate a timetable for every class of the group
// @Description With async=true the generation is queued and a job id is returned with 202.
// @Tags Timetable
// @Produce json
// @Param id path string true "Group ID"
// @Param async query bool false "Queue the generation"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /groups/{id}/timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		h.generateAsync(c)
		return
	}
	result, err := h.service.Generate(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"attempts": result.Attempts})
}

func (h *TimetableHandler) generateAsync(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "asynchronous generation is not available"))
		return
	}
	job, err := h.jobs.GenerateAsync(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.GenerateJobResponse{JobID: job.ID, Status: string(job.Status)}, jobLocation(c, job.ID))
}

// JobStatus godoc
// @Summary Get the state of a queued generation
// @Tags Timetable
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/jobs/{jobId} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "generation job not found"))
		return
	}
	job, err := h.jobs.JobStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Get godoc
// @Summary Get the stored timetable of a group
// @Tags Timetable
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	document, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, document, nil)
}

// Update godoc
// @Summary Overwrite the timetable with a hand-edited version
// @Description The document is stored as received.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.UpdateTimetableRequest true "Timetable document"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/timetable [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var req dto.UpdateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	version, err := h.service.Update(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// History godoc
// @Summary List stored timetable versions
// @Tags Timetable
// @Produce json
// @Param id path string true "Group ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/timetable/history [get]
func (h *TimetableHandler) History(c *gin.Context) {
	var query dto.TimetableHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid history query"))
		return
	}
	items, pagination, err := h.service.History(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Download one class timetable as CSV, PDF or XLSX
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Group ID"
// @Param class query string false "Class name, defaults to the first class"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /groups/{id}/timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.TimetableExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// jobLocation builds the job status URL under the same API prefix as the request.
func jobLocation(c *gin.Context, jobID string) string {
	prefix, _, found := strings.Cut(c.Request.URL.Path, "/groups/")
	if !found {
		return ""
	}
	return prefix + "/timetable/jobs/" + jobID
}

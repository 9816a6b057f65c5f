package controllers

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danfelbm/astra-sub000/models"
	"github.com/danfelbm/astra-sub000/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const importUploadDir = "uploads/imports"

var allowedImportMimeTypes = map[string]bool{
	"text/csv":                 true,
	"text/plain":               true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // some browsers label .csv this way
}

// operationContext builds the explicit tenant/actor context services run
// under from the authenticated claims.
func operationContext(c *gin.Context) services.OperationContext {
	userID, _ := c.Get("userID")
	tenantID, _ := c.Get("tenantID")
	opCtx := services.OperationContext{}
	if id, ok := userID.(int); ok {
		opCtx.ActorID = id
	}
	if id, ok := tenantID.(int); ok {
		opCtx.TenantID = id
	}
	return opCtx
}

// POST /api/v1/admin/imports/analyze
// AdminAnalyzeImportFile stores the uploaded CSV and returns headers, a
// preview sample and the estimated row count the operator builds the field
// mapping from.
func AdminAnalyzeImportFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Import file is required"})
		return
	}
	defer file.Close()

	if header.Size > services.MaxImportFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "File exceeds the 50MB import limit"})
		return
	}
	if !isCSVUpload(header.Header.Get("Content-Type"), header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unsupported file type, please upload a .csv file"})
		return
	}

	if err := os.MkdirAll(importUploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Cannot create upload directory"})
		return
	}

	token := uuid.NewString() + ".csv"
	dstPath := filepath.Join(importUploadDir, token)
	if err := c.SaveUploadedFile(header, dstPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Cannot store uploaded file"})
		return
	}

	analyzer := services.NewFileAnalyzerService()
	analysis, err := analyzer.Analyze(dstPath)
	if err != nil {
		_ = os.Remove(dstPath)
		switch {
		case errors.Is(err, services.ErrEmptyFile):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "File is empty or has no header row"})
		case errors.Is(err, services.ErrFileTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "File exceeds the 50MB import limit"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Cannot read the uploaded file"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"file_token":              token,
		"original_filename":       header.Filename,
		"headers":                 analysis.Headers,
		"sample_rows":             analysis.SampleRows,
		"available_target_fields": services.ImportableTargets(),
		"estimated_total_rows":    analysis.TotalRows,
		"file_size":               analysis.FileSize,
		"is_large":                analysis.IsLarge,
		"is_estimated":            analysis.IsEstimate,
	})
}

type createImportJobRequest struct {
	Name             string               `json:"name" binding:"required"`
	FileToken        string               `json:"file_token" binding:"required"`
	OriginalFilename string               `json:"original_filename"`
	Mode             string               `json:"mode" binding:"required"`
	FieldMappings    models.FieldMappings `json:"field_mappings" binding:"required"`
	UpdateFields     models.JSONStrings   `json:"update_fields"`
	BatchSize        int                  `json:"batch_size"`
	AssemblyID       *int                 `json:"assembly_id"`
	ElectionID       *int                 `json:"election_id"`
}

// POST /api/v1/admin/imports
// AdminCreateImportJob persists the job in pending state and dispatches the
// orchestrator in the background.
func AdminCreateImportJob(c *gin.Context) {
	var req createImportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// The token is a server-generated filename; reject anything path-like.
	token := filepath.Base(strings.TrimSpace(req.FileToken))
	if token != req.FileToken || !strings.HasSuffix(token, ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid file token"})
		return
	}
	storedPath := filepath.Join(importUploadDir, token)
	if _, err := os.Stat(storedPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Uploaded file not found, analyze it first"})
		return
	}

	svc := services.NewImportJobService(nil)
	job, err := svc.CreateJob(c.Request.Context(), operationContext(c), &services.CreateImportJobInput{
		Name:             req.Name,
		StoredPath:       storedPath,
		OriginalFilename: req.OriginalFilename,
		Mode:             req.Mode,
		FieldMappings:    req.FieldMappings,
		UpdateFields:     req.UpdateFields,
		BatchSize:        req.BatchSize,
		AssemblyID:       req.AssemblyID,
		ElectionID:       req.ElectionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidMapping),
			errors.Is(err, services.ErrInvalidMode),
			errors.Is(err, services.ErrContextExclusive),
			errors.Is(err, services.ErrEmptyFile):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	go svc.Run(c.Request.Context(), job.ID)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"job":     job,
	})
}

// GET /api/v1/admin/imports
func AdminListImportJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, offset = clampPage(limit, offset)
	opCtx := operationContext(c)

	jobs := services.NewGormImportJobRepository(nil)
	list, total, err := jobs.List(c.Request.Context(), opCtx.TenantID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"pagination": gin.H{
			"limit":    limit,
			"offset":   offset,
			"total":    total,
			"has_next": int64(offset+limit) < total,
			"has_prev": offset > 0,
		},
	})
}

// GET /api/v1/admin/imports/:id/status
// AdminGetImportStatus is the poll endpoint; it reads, it never mutates.
func AdminGetImportStatus(c *gin.Context) {
	jobID, err := parseJobID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid job id"})
		return
	}

	svc := services.NewImportStatusService(nil)
	status, err := svc.GetStatus(c.Request.Context(), operationContext(c), jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Import job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  status,
	})
}

type resolveConflictRequest struct {
	Resolution      string            `json:"resolution" binding:"required"`
	MergeSelections map[string]string `json:"merge_selections"`
}

// POST /api/v1/admin/imports/:id/conflicts/:conflict_id/resolve
func AdminResolveImportConflict(c *gin.Context) {
	jobID, err := parseJobID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid job id"})
		return
	}
	conflictID := strings.TrimSpace(c.Param("conflict_id"))

	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	svc := services.NewConflictResolverService(nil)
	conflict, err := svc.Resolve(c.Request.Context(), operationContext(c), jobID, conflictID, req.Resolution, req.MergeSelections)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrJobNotFound), errors.Is(err, services.ErrConflictNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, services.ErrConflictAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Conflict already resolved"})
		case errors.Is(err, services.ErrInvalidResolution), errors.Is(err, services.ErrInvalidMergeSelection):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"conflict": conflict,
	})
}

// GET /api/v1/admin/imports/:id/conflicts/:conflict_id
// AdminRefreshImportConflict re-reads the live matched record(s) so the
// operator decides against current data, not a snapshot from the run.
func AdminRefreshImportConflict(c *gin.Context) {
	jobID, err := parseJobID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid job id"})
		return
	}
	conflictID := strings.TrimSpace(c.Param("conflict_id"))

	svc := services.NewConflictResolverService(nil)
	conflict, matches, err := svc.RefreshConflict(c.Request.Context(), operationContext(c), jobID, conflictID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrJobNotFound), errors.Is(err, services.ErrConflictNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"conflict": conflict,
		"matches":  matches,
	})
}

// clampPage bounds pagination the same way the repository does, so the
// response envelope always echoes the values the query actually used.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseJobID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func isCSVUpload(contentType, filename string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if allowedImportMimeTypes[strings.ToLower(mediaType)] {
			return true
		}
	}
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

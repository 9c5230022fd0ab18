package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/services"
)

const formFileField = "file"

type ResumeHandler struct {
	Resumes  ResumeStore
	Audit    Auditor
	MaxBytes int64
}

func NewResumeHandler(rs ResumeStore, a Auditor, maxBytes int64) *ResumeHandler {
	return &ResumeHandler{Resumes: rs, Audit: a, MaxBytes: maxBytes}
}

// readUpload pulls the multipart "file" field into memory, refusing bodies
// well past the upload limit before they are buffered.
func (h *ResumeHandler) readUpload(c *gin.Context) (services.UploadInput, bool) {
	if h.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes+1<<20)
	}
	fh, err := c.FormFile(formFileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
			return services.UploadInput{}, false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return services.UploadInput{}, false
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return services.UploadInput{}, false
	}
	defer f.Close()

	r := io.Reader(f)
	if h.MaxBytes > 0 {
		r = io.LimitReader(f, h.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		respondError(c, err)
		return services.UploadInput{}, false
	}
	return services.UploadInput{FileName: fh.Filename, Data: data}, true
}

// Ingest is POST /resumes/ingest: parse now and file under the extracted email.
func (h *ResumeHandler) Ingest(c *gin.Context) {
	in, ok := h.readUpload(c)
	if !ok {
		return
	}
	res, err := h.Resumes.IngestSync(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "resume.ingest", "resume", res.Resume.ID, gin.H{
		"candidate_id":      res.Candidate.ID,
		"candidate_created": res.CandidateCreated,
		"analysis_status":   res.Analysis.Status,
	})
	status := http.StatusOK
	if res.CandidateCreated {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// Upload is POST /candidates/:id/resumes. Parsing happens in the background.
func (h *ResumeHandler) Upload(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	in, ok := h.readUpload(c)
	if !ok {
		return
	}
	r, err := h.Resumes.Upload(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "resume.upload", "resume", r.ID, gin.H{"candidate_id": id, "version": r.Version})
	c.JSON(http.StatusAccepted, r)
}

// ListForCandidate is GET /candidates/:id/resumes
func (h *ResumeHandler) ListForCandidate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.Resumes.ListForCandidate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ResumeHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, err := h.Resumes.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResumeHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, data, err := h.Resumes.Download(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ct := r.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": r.FileName}))
	c.Data(http.StatusOK, ct, data)
}

// Analysis is GET /resumes/:id/analysis, the latest AI result for the resume.
func (h *ResumeHandler) Analysis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a, err := h.Resumes.LatestAnalysis(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Reparse is POST /resumes/:id/reparse?force=true
func (h *ResumeHandler) Reparse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	force := false
	if v := c.Query("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, fmt.Errorf("force must be a boolean"))
			return
		}
		force = b
	}
	r, err := h.Resumes.Reparse(c.Request.Context(), id, force)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "resume.reparse", "resume", id, gin.H{"force": force})
	c.JSON(http.StatusAccepted, r)
}

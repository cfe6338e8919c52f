package handlers

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/services"
	"github.com/yoockh/resumedesk/internal/utils"
)

const defaultMaxUpload = 2 << 20

type ResumeHandler struct {
	svc       services.ResumeService
	maxUpload int64
	urlTTL    time.Duration
}

func NewResumeHandler(svc services.ResumeService, maxUpload int64, urlTTL time.Duration) *ResumeHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &ResumeHandler{svc: svc, maxUpload: maxUpload, urlTTL: urlTTL}
}

type DashboardView struct {
	Profile *models.Profile `json:"profile,omitempty"`
	Resumes []models.Resume `json:"resumes"`
}

type SignedURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *ResumeHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResumeHandler.Upload", "missing multipart field 'file'", err))
		return
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".pdf" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResumeHandler.Upload", "only .pdf is allowed", nil))
		return
	}
	if fh.Size <= 0 || fh.Size > h.maxUpload {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResumeHandler.Upload",
			fmt.Sprintf("file must be between 1 byte and %d MB", h.maxUpload>>20), nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "ResumeHandler.Upload", "failed to open upload", err))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	head = head[:n]
	if ct := http.DetectContentType(head); ct != "application/pdf" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResumeHandler.Upload", "invalid content type (must be pdf)", nil))
		return
	}

	r := &readJoin{a: bytes.NewReader(head), b: file}
	row, err := h.svc.Upload(c.Request.Context(), userID, fh.Filename, fh.Size, r)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, row)
}

type readJoin struct {
	a *bytes.Reader
	b io.Reader
}

func (r *readJoin) Read(p []byte) (int, error) {
	if r.a != nil && r.a.Len() > 0 {
		return r.a.Read(p)
	}
	return r.b.Read(p)
}

func (h *ResumeHandler) CandidateDashboard(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.dashboard(c, feed.Scope{OwnerID: userID})
}

func (h *ResumeHandler) ReviewerDashboard(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	h.dashboard(c, feed.Scope{})
}

func (h *ResumeHandler) dashboard(c *gin.Context, scope feed.Scope) {
	rows, err := h.svc.List(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardView{Profile: currentProfile(c), Resumes: rows})
}

func (h *ResumeHandler) CandidateURL(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.signedURL(c, feed.Scope{OwnerID: userID})
}

func (h *ResumeHandler) ReviewerURL(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	h.signedURL(c, feed.Scope{})
}

func (h *ResumeHandler) signedURL(c *gin.Context, scope feed.Scope) {
	ctx := c.Request.Context()
	row, err := h.svc.Fetch(ctx, c.Param("id"), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	u, err := h.svc.SignedURL(ctx, row)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SignedURLResponse{URL: u, ExpiresIn: int(h.urlTTL.Seconds())})
}

func (h *ResumeHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	row, err := h.svc.Fetch(c.Request.Context(), c.Param("id"), feed.Scope{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

type ReviewRequest struct {
	Status models.ResumeStatus `json:"status"`
	Score  *int                `json:"score"`
	Notes  string              `json:"notes"`
}

func (h *ResumeHandler) Review(c *gin.Context) {
	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ResumeHandler.Review", "invalid request body", err))
		return
	}

	row, err := h.svc.Review(c.Request.Context(), reviewerID, c.Param("id"), services.ReviewInput{
		Status: req.Status,
		Score:  req.Score,
		Notes:  req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ResumeHandler) Download(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	ctx := c.Request.Context()

	row, err := h.svc.Fetch(ctx, c.Param("id"), feed.Scope{})
	if err != nil {
		writeError(c, err)
		return
	}
	rc, err := h.svc.Download(ctx, row)
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(row.StoragePath)})
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

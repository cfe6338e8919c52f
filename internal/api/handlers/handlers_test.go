package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yoockh/resumedesk/internal/api/middleware"
	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/models"
	pgrepo "github.com/yoockh/resumedesk/internal/repositories/postgres"
	"github.com/yoockh/resumedesk/internal/services"
	"github.com/yoockh/resumedesk/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

var pdfBody = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Upload(_ context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = b
	return name, nil
}

func (s *memStore) SignedGetURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://storage.test/" + name + "?sig=1", nil
}

func (s *memStore) Download(_ context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[name]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []feed.Change
}

func (p *recordingPublisher) Publish(_ context.Context, c feed.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

type stack struct {
	db       *gorm.DB
	store    *memStore
	pub      *recordingPublisher
	profiles services.ProfileService
	resumes  services.ResumeService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "handlers.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, pgrepo.Migrate(db))

	s := &stack{db: db, store: &memStore{objects: map[string][]byte{}}, pub: &recordingPublisher{}}
	s.profiles = services.NewProfileService(pgrepo.NewProfileRepo(db), nil, quietLog())
	s.resumes = services.NewResumeService(pgrepo.NewResumeRepo(db), s.store, s.pub, time.Hour, quietLog())
	return s
}

func (s *stack) onboard(t *testing.T, id, name string, role models.Role) *models.Profile {
	t.Helper()
	p, err := s.profiles.Onboard(context.Background(), id, name, role)
	require.NoError(t, err)
	return p
}

func (s *stack) seedResume(t *testing.T, owner string) *models.Resume {
	t.Helper()
	r, err := s.resumes.Upload(context.Background(), owner, "cv.pdf", int64(len(pdfBody)), bytes.NewReader(pdfBody))
	require.NoError(t, err)
	return r
}

// as stands in for the access router: it installs the routed identity and profile.
func as(user *models.User, profile *models.Profile) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.CtxUserID, user.ID)
			c.Set(middleware.CtxIdentity, user)
		}
		if profile != nil {
			c.Set(middleware.CtxProfile, profile)
			c.Set(middleware.CtxRole, string(profile.Role))
		}
		c.Next()
	}
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonReq(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadReq(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/candidate/resumes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestResumeHandler_Upload(t *testing.T) {
	s := newStack(t)
	cand := s.onboard(t, "cand-1", "Ann", models.RoleCandidate)
	h := NewResumeHandler(s.resumes, 2<<20, time.Hour)

	r := gin.New()
	r.POST("/candidate/resumes", as(&models.User{ID: cand.ID}, cand), h.Upload)

	w := do(r, uploadReq(t, "Ann CV.pdf", pdfBody))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	row := decode[models.Resume](t, w)
	require.Equal(t, "Ann CV.pdf", row.Name)
	require.Equal(t, models.StatusPending, row.Status)
	require.Equal(t, pdfBody, s.store.objects[row.StoragePath])
	require.Len(t, s.pub.changes, 1)

	w = do(r, uploadReq(t, "cv.docx", pdfBody))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, uploadReq(t, "fake.pdf", []byte("just some text, not a pdf")))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, utils.CodeInvalidArgument, decode[APIError](t, w).Code)
}

func TestResumeHandler_UploadTooLarge(t *testing.T) {
	s := newStack(t)
	cand := s.onboard(t, "cand-1", "Ann", models.RoleCandidate)
	h := NewResumeHandler(s.resumes, 16, time.Hour)

	r := gin.New()
	r.POST("/candidate/resumes", as(&models.User{ID: cand.ID}, cand), h.Upload)

	w := do(r, uploadReq(t, "cv.pdf", pdfBody))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, s.store.objects)
}

func TestResumeHandler_Dashboards(t *testing.T) {
	s := newStack(t)
	ann := s.onboard(t, "cand-1", "Ann", models.RoleCandidate)
	bob := s.onboard(t, "cand-2", "Bob", models.RoleCandidate)
	rev := s.onboard(t, "rev-1", "Rita", models.RoleReviewer)
	s.seedResume(t, ann.ID)
	s.seedResume(t, bob.ID)
	h := NewResumeHandler(s.resumes, 0, time.Hour)

	r := gin.New()
	r.GET("/candidate/dashboard", as(&models.User{ID: ann.ID}, ann), h.CandidateDashboard)
	r.GET("/reviewer/dashboard", as(&models.User{ID: rev.ID}, rev), h.ReviewerDashboard)

	mine := decode[DashboardView](t, do(r, httptest.NewRequest(http.MethodGet, "/candidate/dashboard", nil)))
	require.Len(t, mine.Resumes, 1)
	require.Equal(t, ann.ID, mine.Resumes[0].UserID)
	require.Nil(t, mine.Resumes[0].Owner)

	all := decode[DashboardView](t, do(r, httptest.NewRequest(http.MethodGet, "/reviewer/dashboard", nil)))
	require.Len(t, all.Resumes, 2)
	for _, row := range all.Resumes {
		require.NotNil(t, row.Owner)
		require.NotEmpty(t, row.Owner.DisplayName())
	}
	require.Equal(t, models.RoleReviewer, all.Profile.Role)
}

func TestResumeHandler_Review(t *testing.T) {
	s := newStack(t)
	ann := s.onboard(t, "cand-1", "Ann", models.RoleCandidate)
	rev := s.onboard(t, "rev-1", "Rita", models.RoleReviewer)
	row := s.seedResume(t, ann.ID)
	h := NewResumeHandler(s.resumes, 0, time.Hour)

	r := gin.New()
	r.PUT("/reviewer/resumes/:id/review", as(&models.User{ID: rev.ID}, rev), h.Review)
	target := "/reviewer/resumes/" + row.ID + "/review"

	w := do(r, jsonReq(http.MethodPut, target, gin.H{"status": "APPROVED", "score": 150, "notes": "x"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, jsonReq(http.MethodPut, target, gin.H{"status": "MAYBE"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, jsonReq(http.MethodPut, target, gin.H{"status": "APPROVED", "score": 100, "notes": "solid"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Resume](t, w)
	require.Equal(t, models.StatusApproved, got.Status)
	require.Equal(t, 100, *got.Score)
	require.Equal(t, "solid", *got.Notes)
	require.Equal(t, rev.ID, *got.ReviewedBy)
	require.NotNil(t, got.Owner)
	require.Equal(t, "Ann", got.Owner.DisplayName())

	w = do(r, jsonReq(http.MethodPut, target, gin.H{"status": "NEEDS_REVISION", "score": 0, "notes": ""}))
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[models.Resume](t, w)
	require.Equal(t, 0, *got.Score)
	require.Nil(t, got.Notes)

	w = do(r, jsonReq(http.MethodPut, "/reviewer/resumes/"+uuid.NewString()+"/review", gin.H{"status": "APPROVED"}))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestResumeHandler_SignedURLOwnership(t *testing.T) {
	s := newStack(t)
	ann := s.onboard(t, "cand-1", "Ann", models.RoleCandidate)
	bob := s.onboard(t, "cand-2", "Bob", models.RoleCandidate)
	row := s.seedResume(t, ann.ID)
	h := NewResumeHandler(s.resumes, 0, time.Hour)

	r := gin.New()
	r.GET("/ann/:id", as(&models.User{ID: ann.ID}, ann), h.CandidateURL)
	r.GET("/bob/:id", as(&models.User{ID: bob.ID}, bob), h.CandidateURL)

	w := do(r, httptest.NewRequest(http.MethodGet, "/ann/"+row.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[SignedURLResponse](t, w)
	require.Contains(t, got.URL, row.StoragePath)
	require.Equal(t, 3600, got.ExpiresIn)

	w = do(r, httptest.NewRequest(http.MethodGet, "/bob/"+row.ID, nil))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestResumeHandler_Download(t *testing.T) {
	s := newStack(t)
	ann := s.onboard(t, "cand-1", "Ann", models.RoleCandidate)
	rev := s.onboard(t, "rev-1", "Rita", models.RoleReviewer)
	row := s.seedResume(t, ann.ID)
	h := NewResumeHandler(s.resumes, 0, time.Hour)

	r := gin.New()
	r.GET("/reviewer/resumes/:id/download", as(&models.User{ID: rev.ID}, rev), h.Download)

	w := do(r, httptest.NewRequest(http.MethodGet, "/reviewer/resumes/"+row.ID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, pdfBody, w.Body.Bytes())
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Equal(t, "attachment; filename="+filepath.Base(row.StoragePath), w.Header().Get("Content-Disposition"))
}

func TestProfileHandler_Onboarding(t *testing.T) {
	s := newStack(t)
	h := NewProfileHandler(s.profiles)
	user := &models.User{ID: "u1", Email: "u1@example.com"}

	r := gin.New()
	r.GET("/onboarding", as(user, nil), h.Onboarding)
	r.POST("/onboarding", as(user, nil), h.Onboard)

	view := decode[OnboardingView](t, do(r, httptest.NewRequest(http.MethodGet, "/onboarding", nil)))
	require.Equal(t, "u1", view.UserID)
	require.Equal(t, []models.Role{models.RoleCandidate, models.RoleReviewer}, view.Roles)

	w := do(r, jsonReq(http.MethodPost, "/onboarding", gin.H{"full_name": "", "role": "ADMIN"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, jsonReq(http.MethodPost, "/onboarding", gin.H{"full_name": "", "role": "REVIEWER"}))
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[OnboardingResponse](t, w)
	require.Equal(t, "/reviewer/dashboard", resp.RedirectTo)
	require.Nil(t, resp.Profile.FullName)

	w = do(r, jsonReq(http.MethodPost, "/onboarding", gin.H{"full_name": "Again", "role": "CANDIDATE"}))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, utils.CodeConflict, decode[APIError](t, w).Code)
}

func TestProfileHandler_MeAndUpdate(t *testing.T) {
	s := newStack(t)
	p := s.onboard(t, "u1", "Ann", models.RoleCandidate)
	signIn := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	user := &models.User{ID: "u1", Email: "ann@example.com", EmailVerified: true, Provider: "google", LastSignInAt: signIn}
	h := NewProfileHandler(s.profiles)

	r := gin.New()
	r.GET("/candidate/profile", as(user, p), h.Me)
	r.PUT("/candidate/profile", as(user, p), h.Update)

	view := decode[AccountView](t, do(r, httptest.NewRequest(http.MethodGet, "/candidate/profile", nil)))
	require.Equal(t, "Ann", *view.FullName)
	require.Equal(t, "Google", view.LoginMethod)
	require.True(t, view.EmailVerified)
	require.True(t, signIn.Equal(*view.LastSignInAt))
	require.NotNil(t, view.CreatedAt, "falls back to the profile creation time")
	require.Equal(t, "/candidate/dashboard", view.Dashboard)

	w := do(r, jsonReq(http.MethodPut, "/candidate/profile", gin.H{"full_name": "Ann Lee"}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Ann Lee", *decode[AccountView](t, w).FullName)

	w = do(r, jsonReq(http.MethodPut, "/candidate/profile", gin.H{}))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginMethod(t *testing.T) {
	require.Equal(t, "Email", loginMethod(""))
	require.Equal(t, "Github", loginMethod("github"))
}

func TestRequireUserID_Missing(t *testing.T) {
	s := newStack(t)
	h := NewResumeHandler(s.resumes, 0, time.Hour)
	r := gin.New()
	r.GET("/candidate/dashboard", h.CandidateDashboard)

	w := do(r, httptest.NewRequest(http.MethodGet, "/candidate/dashboard", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

func intp(v int) *int { return &v }

func newResumeSvc() (ResumeService, *fakeResumeRepo, *fakeObjectStore, *fakePublisher) {
	repo := newFakeResumeRepo()
	store := newFakeObjectStore()
	pub := &fakePublisher{}
	return NewResumeService(repo, store, pub, time.Hour, testLog()), repo, store, pub
}

func seed(repo *fakeResumeRepo, owner string) models.Resume {
	r := models.Resume{
		ID:          uuid.NewString(),
		UserID:      owner,
		Name:        "cv.pdf",
		StoragePath: "candidate-uploads/" + owner + "/1_cv.pdf",
		Status:      models.StatusPending,
	}
	repo.rows[r.ID] = r
	return r
}

func TestResumeService_ReviewRejectsOutOfRangeScoreBeforeStore(t *testing.T) {
	svc, repo, _, pub := newResumeSvc()
	r := seed(repo, "u1")
	before := repo.callCount()

	for _, score := range []int{150, 101, -1} {
		_, err := svc.Review(context.Background(), "rev-1", r.ID, ReviewInput{Status: models.StatusApproved, Score: intp(score)})
		require.Error(t, err)
		require.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	}
	require.Equal(t, before, repo.callCount(), "no store calls for invalid score")
	require.Empty(t, pub.changes)
}

func TestResumeService_ReviewAcceptsBounds(t *testing.T) {
	svc, repo, _, pub := newResumeSvc()
	r := seed(repo, "u1")

	for _, score := range []int{0, 100} {
		got, err := svc.Review(context.Background(), "rev-1", r.ID, ReviewInput{Status: models.StatusNeedsRevision, Score: intp(score), Notes: "  "})
		require.NoError(t, err)
		require.Equal(t, score, *got.Score)
		require.Equal(t, models.StatusNeedsRevision, got.Status)
		require.Nil(t, got.Notes, "blank notes are stored as NULL")
		require.Equal(t, "rev-1", *got.ReviewedBy)
	}
	require.Len(t, pub.changes, 2)
	require.Equal(t, feed.ChangeUpdate, pub.changes[0].Type)
	require.Equal(t, r.ID, pub.changes[0].RecordID())
}

func TestResumeService_ReviewValidation(t *testing.T) {
	svc, repo, _, _ := newResumeSvc()
	r := seed(repo, "u1")
	ctx := context.Background()

	_, err := svc.Review(ctx, "rev-1", r.ID, ReviewInput{Status: "DONE"})
	require.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Review(ctx, "rev-1", "not-a-uuid", ReviewInput{Status: models.StatusApproved})
	require.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = svc.Review(ctx, "rev-1", uuid.NewString(), ReviewInput{Status: models.StatusApproved})
	require.True(t, utils.IsCode(err, utils.CodeNotFound))

	got, err := svc.Review(ctx, "rev-1", r.ID, ReviewInput{Status: models.StatusApproved, Notes: "great"})
	require.NoError(t, err)
	require.Nil(t, got.Score)
	require.Equal(t, "great", *got.Notes)
}

func TestResumeService_Upload(t *testing.T) {
	svc, repo, store, pub := newResumeSvc()
	body := []byte("%PDF-1.7 fake")

	got, err := svc.Upload(context.Background(), "u1", "My CV.pdf", int64(len(body)), bytes.NewReader(body))
	require.NoError(t, err)

	require.Equal(t, models.StatusPending, got.Status)
	require.Equal(t, "My CV.pdf", got.Name)
	require.True(t, strings.HasPrefix(got.StoragePath, "candidate-uploads/u1/"))
	require.True(t, strings.HasSuffix(got.StoragePath, "_My CV.pdf"))
	require.Equal(t, body, store.objects[got.StoragePath])
	require.Equal(t, "application/pdf", store.types[got.StoragePath])
	require.Contains(t, repo.rows, got.ID)

	require.Len(t, pub.changes, 1)
	require.Equal(t, feed.ChangeInsert, pub.changes[0].Type)
	require.Equal(t, "u1", pub.changes[0].OwnerID())
}

func TestResumeService_UploadStorageFailure(t *testing.T) {
	svc, repo, store, pub := newResumeSvc()
	store.err = errors.New("bucket gone")

	_, err := svc.Upload(context.Background(), "u1", "cv.pdf", 3, strings.NewReader("pdf"))
	require.True(t, utils.IsCode(err, utils.CodeUnavailable))
	require.Empty(t, repo.rows)
	require.Empty(t, pub.changes)
}

func TestResumeService_UploadInsertFailureRemovesObject(t *testing.T) {
	svc, repo, store, pub := newResumeSvc()
	repo.insertErr = errors.New("unique violation")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.Upload(ctx, "u1", "cv.pdf", 3, strings.NewReader("pdf"))
	require.True(t, utils.IsCode(err, utils.CodeInternal))
	require.Len(t, store.deleted, 1)
	require.True(t, strings.HasPrefix(store.deleted[0], "candidate-uploads/u1/"))
	require.Empty(t, store.objects)
	require.Empty(t, pub.changes)
}

func TestResumeService_FetchOwnerScope(t *testing.T) {
	svc, repo, _, _ := newResumeSvc()
	mine := seed(repo, "u1")
	theirs := seed(repo, "u2")
	ctx := context.Background()

	got, err := svc.Fetch(ctx, mine.ID, feed.Scope{OwnerID: "u1"})
	require.NoError(t, err)
	require.Equal(t, mine.ID, got.ID)

	_, err = svc.Fetch(ctx, theirs.ID, feed.Scope{OwnerID: "u1"})
	require.True(t, utils.IsCode(err, utils.CodeForbidden))

	got, err = svc.Fetch(ctx, theirs.ID, feed.Scope{})
	require.NoError(t, err)
	require.Equal(t, "u2", got.UserID)
}

func TestResumeService_SignedURLAndDownload(t *testing.T) {
	svc, _, _, _ := newResumeSvc()
	ctx := context.Background()

	up, err := svc.Upload(ctx, "u1", "cv.pdf", 4, strings.NewReader("%PDF"))
	require.NoError(t, err)

	u, err := svc.SignedURL(ctx, up)
	require.NoError(t, err)
	require.Contains(t, u, up.StoragePath)
	require.Contains(t, u, "ttl=1h0m0s")

	rc, err := svc.Download(ctx, up)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(b))
}

func TestObjectName(t *testing.T) {
	at := time.UnixMilli(1714557600123)
	require.Equal(t, "candidate-uploads/u1/1714557600123_cv.pdf", ObjectName("u1", at, "cv.pdf"))
	require.Equal(t, "candidate-uploads/u1/1714557600123_cv.pdf", ObjectName("u1", at, "../../etc/cv.pdf"))
	require.Equal(t, "candidate-uploads/u1/1714557600123_cv.pdf", ObjectName("u1", at, `C:\docs\cv.pdf`))
	require.Equal(t, "candidate-uploads/u1/1714557600123_resume.pdf", ObjectName("u1", at, ""))
}

package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/models"
	pgrepo "github.com/yoockh/resumedesk/internal/repositories/postgres"
	"github.com/yoockh/resumedesk/internal/utils"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeResumeRepo struct {
	mu        sync.Mutex
	rows      map[string]models.Resume
	calls     int
	updates   []pgrepo.ReviewUpdate
	insertErr error
}

func newFakeResumeRepo() *fakeResumeRepo {
	return &fakeResumeRepo{rows: map[string]models.Resume{}}
}

func (f *fakeResumeRepo) List(_ context.Context, ownerID string, joined bool) ([]models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := []models.Resume{}
	for _, r := range f.rows {
		if ownerID == "" || r.UserID == ownerID {
			if !joined {
				r.Owner = nil
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResumeRepo) GetByID(_ context.Context, id string, joined bool) (*models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	if !joined {
		r.Owner = nil
	}
	return &r, nil
}

func (f *fakeResumeRepo) Insert(_ context.Context, r *models.Resume) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows[r.ID] = *r
	return nil
}

func (f *fakeResumeRepo) UpdateReview(_ context.Context, id string, u pgrepo.ReviewUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	f.updates = append(f.updates, u)
	r.Status = u.Status
	r.Score = u.Score
	r.Notes = u.Notes
	reviewer := u.ReviewedBy
	r.ReviewedBy = &reviewer
	f.rows[id] = r
	return nil
}

func (f *fakeResumeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeObjectStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeObjectStore) Upload(_ context.Context, objectName, contentType string, r io.Reader, _ int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.objects[objectName] = b
	s.types[objectName] = contentType
	return objectName, nil
}

func (s *fakeObjectStore) SignedGetURL(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + objectName + "?ttl=" + ttl.String(), nil
}

func (s *fakeObjectStore) Download(_ context.Context, objectName string) (io.ReadCloser, error) {
	b, ok := s.objects[objectName]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *fakeObjectStore) Delete(_ context.Context, objectName string) error {
	s.deleted = append(s.deleted, objectName)
	delete(s.objects, objectName)
	delete(s.types, objectName)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	changes []feed.Change
}

func (p *fakePublisher) Publish(_ context.Context, c feed.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

type fakeProfileRepo struct {
	rows map[string]models.Profile
	gets int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{rows: map[string]models.Profile{}}
}

func (f *fakeProfileRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	f.gets++
	p, ok := f.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfileRepo) Create(_ context.Context, p *models.Profile) error {
	if _, ok := f.rows[p.ID]; ok {
		return utils.ErrConflict
	}
	f.rows[p.ID] = *p
	return nil
}

func (f *fakeProfileRepo) UpdateFullName(_ context.Context, id string, fullName *string) error {
	p, ok := f.rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	p.FullName = fullName
	f.rows[id] = p
	return nil
}

package certificate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu         sync.Mutex
	certs      map[string]*Certificate
	collisions int
	createErr  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{certs: make(map[string]*Certificate)}
}

func (r *memoryRepo) Create(_ context.Context, c *Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if r.collisions > 0 {
		r.collisions--
		return ErrDuplicateID
	}
	if _, ok := r.certs[c.CertificateID]; ok {
		return ErrDuplicateID
	}
	c.ID = int64(len(r.certs) + 1)
	cp := *c
	r.certs[c.CertificateID] = &cp
	return nil
}

func (r *memoryRepo) GetByCertificateID(_ context.Context, id string) (*Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context, f ListFilter) ([]Certificate, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []Certificate
	for _, c := range r.certs {
		if f.Status != "" && c.Status() != f.Status {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], total, nil
}

func (r *memoryRepo) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = active
	return nil
}

func (r *memoryRepo) RecordVerification(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return ErrNotFound
	}
	c.VerificationCount++
	c.LastVerified = &at
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, NewSigner([]byte("k")), Config{IDPrefix: "CP", BaseURL: "https://certs.example.com/"})
}

func TestIssue(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	issue := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := svc.Issue(context.Background(), IssueRequest{
		HolderName: "  Ada Lovelace ",
		CourseName: "Engines",
		IssueDate:  issue,
		CreatedBy:  "admin",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^CP-[A-Z0-9]{6}-\d{4}$`, c.CertificateID)
	assert.Equal(t, "Ada Lovelace", c.HolderName)
	assert.True(t, c.IsActive)
	assert.NotEmpty(t, c.DigitalSignature)
	assert.True(t, svc.signer.Verify(c))

	stored, err := svc.Get(context.Background(), c.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, c.DigitalSignature, stored.DigitalSignature)
}

func TestIssueRetriesOnCollision(t *testing.T) {
	repo := newMemoryRepo()
	repo.collisions = 2
	svc := newTestService(repo)

	c, err := svc.Issue(context.Background(), IssueRequest{HolderName: "A", CourseName: "B", IssueDate: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, c.CertificateID)
}

func TestIssueGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemoryRepo()
	repo.collisions = maxIssueAttempts
	svc := newTestService(repo)

	_, err := svc.Issue(context.Background(), IssueRequest{HolderName: "A", CourseName: "B", IssueDate: time.Now()})
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
}

func TestIssueValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	issue := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	before := issue.AddDate(0, 0, -1)

	_, err := svc.Issue(context.Background(), IssueRequest{HolderName: "A", CourseName: "B", IssueDate: issue, ExpiryDate: &before})
	assert.ErrorIs(t, err, ErrInvalidDates)

	_, err = svc.Issue(context.Background(), IssueRequest{HolderName: " ", CourseName: "B", IssueDate: issue})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestIssueStoreFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = errors.New("connection refused")
	svc := newTestService(repo)

	_, err := svc.Issue(context.Background(), IssueRequest{HolderName: "A", CourseName: "B", IssueDate: time.Now()})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIDSpaceExhausted)
}

func TestSetStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	c, err := svc.Issue(context.Background(), IssueRequest{HolderName: "A", CourseName: "B", IssueDate: time.Now()})
	require.NoError(t, err)

	updated, err := svc.SetStatus(context.Background(), c.CertificateID, StatusRevoked)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, StatusRevoked, updated.Status())

	_, err = svc.SetStatus(context.Background(), "CP-NOPE00-2024", StatusRevoked)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListClampsLimit(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	for i := 0; i < 3; i++ {
		_, err := svc.Issue(context.Background(), IssueRequest{HolderName: "A", CourseName: "B", IssueDate: time.Now()})
		require.NoError(t, err)
	}

	certs, total, err := svc.List(context.Background(), ListFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, certs, 3)

	certs, total, err = svc.List(context.Background(), ListFilter{Status: StatusRevoked, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, certs)
}

func TestVerificationURL(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	assert.Equal(t, "https://certs.example.com/verify?id=CP-AB12CD-2024", svc.VerificationURL("CP-AB12CD-2024"))
	assert.Equal(t, "/verify?id=a+b", VerificationURL("", "a b"))
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("revoked")
	assert.True(t, ok)
	assert.Equal(t, StatusRevoked, s)

	_, ok = ParseStatus("deleted")
	assert.False(t, ok)
}

func TestIssueNormalisesDates(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	issue := time.Date(2026, 5, 10, 18, 30, 0, 0, time.UTC)
	expiry := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	c, err := svc.Issue(context.Background(), IssueRequest{
		HolderName: "A",
		CourseName: "B",
		IssueDate:  issue,
		ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), c.IssueDate)
	require.NotNil(t, c.ExpiryDate)
	assert.Equal(t, c.IssueDate, *c.ExpiryDate)
}

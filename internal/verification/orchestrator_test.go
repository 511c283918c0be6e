package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCerts struct {
	mu        sync.Mutex
	certs     map[string]*certificate.Certificate
	getErr    error
	recordErr error
	block     bool
}

func newFakeCerts(certs ...*certificate.Certificate) *fakeCerts {
	f := &fakeCerts{certs: make(map[string]*certificate.Certificate)}
	for _, c := range certs {
		f.certs[c.CertificateID] = c
	}
	return f
}

func (f *fakeCerts) GetByCertificateID(ctx context.Context, id string) (*certificate.Certificate, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.certs[id]
	if !ok {
		return nil, certificate.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCerts) RecordVerification(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	c := f.certs[id]
	c.VerificationCount++
	c.LastVerified = &at
	return nil
}

func (f *fakeCerts) count(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.certs[id].VerificationCount
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (f *fakeEvents) Append(_ context.Context, e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type memoryLimits struct {
	mu      sync.Mutex
	records []ratelimit.Record
	err     error
}

func (m *memoryLimits) Window(_ context.Context, identifier, action string, since time.Time) (ratelimit.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ratelimit.Window{}, m.err
	}
	var w ratelimit.Window
	for _, r := range m.records {
		if r.Identifier == identifier && r.Action == action && r.Timestamp.After(since) {
			if w.Count == 0 || r.Timestamp.Before(w.Oldest) {
				w.Oldest = r.Timestamp
			}
			w.Count++
		}
	}
	return w, nil
}

func (m *memoryLimits) Record(_ context.Context, rec ratelimit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryLimits) PurgeBefore(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

type harness struct {
	certs  *fakeCerts
	events *fakeEvents
	limits *memoryLimits
	clock  time.Time
	orch   *Orchestrator
}

func newHarness(t *testing.T, check certificate.SignatureCheck, certs ...*certificate.Certificate) *harness {
	t.Helper()
	h := &harness{
		certs:  newFakeCerts(certs...),
		events: &fakeEvents{},
		limits: &memoryLimits{},
		clock:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return h.clock }
	limiter := ratelimit.NewLimiter(h.limits, ratelimit.WithClock(now), ratelimit.WithPurgeProbability(0))
	h.orch = NewOrchestrator(h.certs, h.events, limiter, check, []byte("salt"), Config{
		MaxRequests:  5,
		Window:       5 * time.Minute,
		StoreTimeout: 50 * time.Millisecond,
	})
	h.orch.now = now
	return h
}

func activeCert(id string) *certificate.Certificate {
	return &certificate.Certificate{
		CertificateID:    id,
		HolderName:       "Ada Lovelace",
		CourseName:       "Engines",
		IssueDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:         true,
		DigitalSignature: "deadbeef",
	}
}

var actor = Actor{IP: "203.0.113.7", UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile"}

func TestVerifyValidTwiceIncrementsCounter(t *testing.T) {
	h := newHarness(t, nil, activeCert("CP-AB12CD-2024"))

	for i := 1; i <= 2; i++ {
		res, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
		require.NoError(t, err)
		assert.Equal(t, certificate.VerdictValid, res.Verdict)
		require.NotNil(t, res.Certificate)
		assert.Equal(t, int64(i), res.Certificate.VerificationCount)
		assert.Equal(t, "Ada Lovelace", res.Certificate.HolderName)
		assert.Equal(t, certificate.StatusActive, res.Status)
		h.clock = h.clock.Add(time.Second)
	}
	assert.Equal(t, int64(2), h.certs.count("CP-AB12CD-2024"))

	require.Len(t, h.events.events, 2)
	e := h.events.events[0]
	assert.True(t, e.Outcome)
	assert.Equal(t, DeviceMobile, e.DeviceClass)
	assert.Equal(t, actor.IP, e.ActorIP)
	assert.Equal(t, "CP-AB12CD-2024", e.CertificateID)
}

func TestVerifySixthAttemptIsRateLimited(t *testing.T) {
	h := newHarness(t, nil, activeCert("CP-AB12CD-2024"))
	start := h.clock

	for i := 0; i < 5; i++ {
		_, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
		require.NoError(t, err)
		h.clock = h.clock.Add(10 * time.Second)
	}

	_, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, start.Add(5*time.Minute).Sub(h.clock), rle.RetryAfter)
	assert.Len(t, h.events.events, 5, "rate-limited attempts are not audited")

	// A different certificate from the same address has its own bucket.
	_, err = h.orch.VerifyCertificate(context.Background(), "CP-OTHER1-2024", actor)
	assert.NoError(t, err)

	h.clock = start.Add(5*time.Minute + time.Second)
	_, err = h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
	assert.NoError(t, err)
}

func TestVerifyInvalidFormat(t *testing.T) {
	h := newHarness(t, nil)
	for _, id := range []string{"", "CP-AB12CD-2024'--", "<script>", "a b"} {
		_, err := h.orch.VerifyCertificate(context.Background(), id, actor)
		assert.ErrorIs(t, err, ErrInvalidFormat, "id %q", id)
	}
	assert.Empty(t, h.limits.records)
}

func TestVerifyNotFound(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.orch.VerifyCertificate(context.Background(), "CP-NOPE00-2024", actor)
	require.NoError(t, err)
	assert.Equal(t, certificate.VerdictNotFound, res.Verdict)
	assert.Nil(t, res.Certificate)
	assert.Empty(t, res.Status)
	require.Len(t, h.events.events, 1)
	assert.False(t, h.events.events[0].Outcome)
}

func TestVerifyRevokedExposesOnlyStatus(t *testing.T) {
	c := activeCert("CP-REVOK1-2024")
	c.IsActive = false
	h := newHarness(t, nil, c)

	res, err := h.orch.VerifyCertificate(context.Background(), c.CertificateID, actor)
	require.NoError(t, err)
	assert.Equal(t, certificate.VerdictRevoked, res.Verdict)
	assert.Equal(t, certificate.StatusRevoked, res.Status)
	assert.Nil(t, res.Certificate)
	assert.Zero(t, h.certs.count(c.CertificateID))
}

func TestVerifyExpired(t *testing.T) {
	c := activeCert("CP-EXPIR1-2024")
	past := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c.ExpiryDate = &past
	h := newHarness(t, nil, c)

	res, err := h.orch.VerifyCertificate(context.Background(), c.CertificateID, actor)
	require.NoError(t, err)
	assert.Equal(t, certificate.VerdictExpired, res.Verdict)
	assert.Nil(t, res.Certificate)
	assert.False(t, res.Valid())
}

func TestVerifyTamperedIsSoftWarning(t *testing.T) {
	h := newHarness(t, func(*certificate.Certificate) bool { return false }, activeCert("CP-TAMPR1-2024"))

	res, err := h.orch.VerifyCertificate(context.Background(), "CP-TAMPR1-2024", actor)
	require.NoError(t, err)
	assert.Equal(t, certificate.VerdictTampered, res.Verdict)
	assert.True(t, res.Valid())
	assert.NotEmpty(t, res.Warning)
	require.NotNil(t, res.Certificate)
	assert.False(t, h.events.events[0].Outcome)
}

func TestVerifySurvivesAuditAndCounterFailures(t *testing.T) {
	h := newHarness(t, nil, activeCert("CP-AB12CD-2024"))
	h.events.err = errors.New(`relation "verification_events" does not exist`)
	h.certs.recordErr = errors.New("deadlock detected")

	res, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
	require.NoError(t, err)
	assert.Equal(t, certificate.VerdictValid, res.Verdict)
	assert.Zero(t, res.Certificate.VerificationCount)
}

func TestVerifyFailsClosedOnLookupError(t *testing.T) {
	h := newHarness(t, nil, activeCert("CP-AB12CD-2024"))
	h.certs.getErr = errors.New("connection refused")

	_, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
	require.Error(t, err)
	assert.Empty(t, h.events.events)
}

func TestVerifyFailsClosedOnLookupTimeout(t *testing.T) {
	h := newHarness(t, nil, activeCert("CP-AB12CD-2024"))
	h.certs.block = true

	_, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVerifyRateLimitStoreDownFailsOpen(t *testing.T) {
	h := newHarness(t, nil, activeCert("CP-AB12CD-2024"))
	h.limits.err = errors.New(`relation "rate_limits" does not exist`)

	for i := 0; i < 10; i++ {
		res, err := h.orch.VerifyCertificate(context.Background(), "CP-AB12CD-2024", actor)
		require.NoError(t, err)
		assert.Equal(t, certificate.VerdictValid, res.Verdict)
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{RetryAfter: 42 * time.Second}
	assert.Contains(t, err.Error(), "42 seconds")
}

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/dossier"
	"github.com/telecare-health/telecare/internal/domain/grant"
	"github.com/telecare-health/telecare/internal/domain/message"
	"github.com/telecare-health/telecare/internal/domain/trustlink"
	"github.com/telecare-health/telecare/pkg/metrics"
)

// In-memory fakes implementing the repository interfaces the services consume.
// They mirror the real CAS and upsert semantics so the services can be tested
// without a database.

func newTestCollector() *metrics.Collector {
	return metrics.NewCollectorWith(prometheus.NewRegistry(), "test")
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func newTestAuditService() *AuditService {
	return NewAuditService(&fakeAuditRepo{}, zap.NewNop())
}

type fakeUserDirectory struct {
	users map[uuid.UUID]*domain.User
}

func newFakeUserDirectory(users ...*domain.User) *fakeUserDirectory {
	d := &fakeUserDirectory{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeUserDirectory) FindUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return d.users[id], nil
}

func (d *fakeUserDirectory) FindPhysician(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u := d.users[id]
	if u == nil || u.Role != domain.RolePhysician {
		return nil, nil
	}
	return u, nil
}

type fakeTrustLinkRepo struct {
	mu    sync.Mutex
	links map[uuid.UUID]*trustlink.TrustLink
}

func newFakeTrustLinkRepo() *fakeTrustLinkRepo {
	return &fakeTrustLinkRepo{links: make(map[uuid.UUID]*trustlink.TrustLink)}
}

func (r *fakeTrustLinkRepo) Create(_ context.Context, l *trustlink.TrustLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now()
	cp := *l
	r.links[l.ID] = &cp
	return nil
}

func (r *fakeTrustLinkRepo) GetByID(_ context.Context, id uuid.UUID) (*trustlink.TrustLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeTrustLinkRepo) FindCurrent(_ context.Context, patientID, physicianID uuid.UUID) (*trustlink.TrustLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.PatientID == patientID && l.PhysicianID == physicianID &&
			(l.Status == trustlink.StatusPending || l.Status == trustlink.StatusAccepted) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTrustLinkRepo) ExistsAccepted(_ context.Context, patientID, physicianID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.PatientID == patientID && l.PhysicianID == physicianID && l.Status == trustlink.StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTrustLinkRepo) Accept(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || l.Status != trustlink.StatusPending {
		return false, nil
	}
	l.Status = trustlink.StatusAccepted
	l.AcceptedAt = &at
	return true, nil
}

func (r *fakeTrustLinkRepo) Revoke(_ context.Context, id uuid.UUID, by uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || l.Status == trustlink.StatusRevoked {
		return false, nil
	}
	l.Status = trustlink.StatusRevoked
	l.RevokedAt = &at
	l.RevokedBy = &by
	return true, nil
}

func (r *fakeTrustLinkRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*trustlink.TrustLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*trustlink.TrustLink
	for _, l := range r.links {
		if l.PatientID == userID || l.PhysicianID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[uuid.UUID]*grant.Grant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[uuid.UUID]*grant.Grant)}
}

func (r *fakeGrantRepo) Create(_ context.Context, g *grant.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = time.Now()
	cp := *g
	r.grants[g.ID] = &cp
	return nil
}

func (r *fakeGrantRepo) GetByID(_ context.Context, id uuid.UUID) (*grant.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGrantRepo) FindActive(_ context.Context, physicianID uuid.UUID, resourceType grant.ResourceType, resourceID uuid.UUID) (*grant.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants {
		if g.PhysicianID == physicianID && g.ResourceType == resourceType &&
			g.ResourceID == resourceID && g.Status == grant.StatusActive {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeGrantRepo) UpdateActive(_ context.Context, physicianID uuid.UUID, resourceType grant.ResourceType, resourceID uuid.UUID,
	canDownload, canScreenshot bool, expiresAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants {
		if g.PhysicianID == physicianID && g.ResourceType == resourceType &&
			g.ResourceID == resourceID && g.Status == grant.StatusActive {
			g.CanDownload = canDownload
			g.CanScreenshot = canScreenshot
			g.ExpiresAt = expiresAt
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGrantRepo) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[id]
	if !ok || g.Status != grant.StatusActive {
		return false, nil
	}
	g.Status = grant.StatusExpired
	return true, nil
}

func (r *fakeGrantRepo) MarkRevoked(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.grants[id]; ok {
		g.Status = grant.StatusRevoked
	}
	return nil
}

func (r *fakeGrantRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*grant.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*grant.Grant
	for _, g := range r.grants {
		if g.PatientID == patientID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*message.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.SentAt = time.Now()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) ListConversation(_ context.Context, userA, userB uuid.UUID) ([]*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*message.Message
	for _, m := range r.messages {
		if (m.SenderID == userA && m.RecipientID == userB) || (m.SenderID == userB && m.RecipientID == userA) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.ReadFlag = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, recipientID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.messages {
		if m.RecipientID == recipientID && !m.ReadFlag {
			count++
		}
	}
	return count, nil
}

type fakeDossierRepo struct {
	mu        sync.Mutex
	dossiers  map[uuid.UUID]*dossier.Dossier
	documents map[uuid.UUID]*dossier.Document
	comments  []*dossier.Comment
}

func newFakeDossierRepo() *fakeDossierRepo {
	return &fakeDossierRepo{
		dossiers:  make(map[uuid.UUID]*dossier.Dossier),
		documents: make(map[uuid.UUID]*dossier.Document),
	}
}

func (r *fakeDossierRepo) CreateDossier(_ context.Context, d *dossier.Dossier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.dossiers[d.ID] = &cp
	return nil
}

func (r *fakeDossierRepo) GetDossierByID(_ context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dossiers[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDossierRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*dossier.Dossier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dossier.Dossier
	for _, d := range r.dossiers {
		if d.PatientID == patientID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDossierRepo) CreateDocument(_ context.Context, doc *dossier.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	cp := *doc
	r.documents[doc.ID] = &cp
	return nil
}

func (r *fakeDossierRepo) GetDocumentByID(_ context.Context, id uuid.UUID) (*dossier.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDossierRepo) ListDocuments(_ context.Context, dossierID uuid.UUID) ([]*dossier.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dossier.Document
	for _, doc := range r.documents {
		if doc.DossierID == dossierID {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDossierRepo) CreateComment(_ context.Context, c *dossier.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.comments = append(r.comments, &cp)
	return nil
}

func (r *fakeDossierRepo) ListComments(_ context.Context, documentID uuid.UUID) ([]*dossier.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dossier.Comment
	for _, c := range r.comments {
		if c.DocumentID == documentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Shared test identities.

func testPatient() *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Martin",
		Role:      domain.RolePatient,
		IsActive:  true,
	}
}

func testPhysician() *domain.User {
	now := time.Now()
	return &domain.User{
		ID:            uuid.New(),
		Email:         "dr.bernard@example.com",
		FirstName:     "Paul",
		LastName:      "Bernard",
		Role:          domain.RolePhysician,
		Specialty:     "cardiology",
		LicenseNumber: "FR-12345",
		VerifiedAt:    &now,
		IsActive:      true,
	}
}

func claimsFor(u *domain.User) *domain.Claims {
	return &domain.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
}

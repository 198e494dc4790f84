package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain/dossier"
	"github.com/telecare-health/telecare/internal/domain/grant"
)

func newGrantEnv(t *testing.T) (*GrantService, *fakeGrantRepo, *fakeDossierRepo) {
	t.Helper()
	grants := newFakeGrantRepo()
	dossiers := newFakeDossierRepo()
	svc := NewGrantService(grants, dossiers, newTestAuditService(), newTestCollector(), zap.NewNop())
	return svc, grants, dossiers
}

func seedDossier(t *testing.T, repo *fakeDossierRepo, patientID uuid.UUID) *dossier.Dossier {
	t.Helper()
	d := &dossier.Dossier{PatientID: patientID, Title: "cardiology file"}
	require.NoError(t, repo.CreateDossier(context.Background(), d))
	return d
}

func TestGrant_IssueAndVerify(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	svc, _, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	g, err := svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   d.ID,
		CanDownload:  true,
	}, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, grant.StatusActive, g.Status)

	dec, err := svc.Verify(ctx, physician.ID, grant.ResourceDossier, d.ID)
	require.NoError(t, err)
	assert.True(t, dec.HasAccess)
	assert.True(t, dec.CanDownload)
	assert.False(t, dec.CanScreenshot)
}

func TestGrant_RepeatUpdatesInPlace(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	svc, grants, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	first, err := svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   d.ID,
	}, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)

	second, err := svc.Grant(ctx, &grant.GrantCommand{
		PatientID:     patient.ID,
		PhysicianID:   physician.ID,
		ResourceType:  grant.ResourceDossier,
		ResourceID:    d.ID,
		CanDownload:   true,
		CanScreenshot: true,
	}, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)

	// The same row was refreshed, not duplicated.
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.CanDownload)

	listed, err := grants.ListByPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestGrant_OnlyOwningPatientMayShare(t *testing.T) {
	patient := testPatient()
	other := testPatient()
	physician := testPhysician()
	svc, _, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	cmd := &grant.GrantCommand{
		PatientID:    other.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   d.ID,
	}

	// A different patient granting someone else's dossier.
	_, err := svc.Grant(ctx, cmd, claimsFor(other), "10.0.0.1")
	assert.ErrorIs(t, err, ErrForbidden)

	// A physician cannot issue grants at all.
	cmd.PatientID = physician.ID
	_, err = svc.Grant(ctx, cmd, claimsFor(physician), "10.0.0.1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGrant_ValidationFailures(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	svc, _, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	past := time.Now().Add(-time.Hour)
	_, err := svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   d.ID,
		ExpiresAt:    &past,
	}, claimsFor(patient), "10.0.0.1")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceType("appointment"),
		ResourceID:   d.ID,
	}, claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, grant.ErrInvalidResourceType)

	_, err = svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   uuid.New(),
	}, claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, dossier.ErrDossierNotFound)
}

func TestGrantVerify_NoGrantDeniesEverything(t *testing.T) {
	physician := testPhysician()
	svc, _, _ := newGrantEnv(t)

	dec, err := svc.Verify(context.Background(), physician.ID, grant.ResourceDossier, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, grant.Decision{}, dec)
}

func TestGrantVerify_LazyExpiryOnRead(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	svc, grants, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	// Seed an active grant whose expiry has already passed, as if no sweeper
	// ever ran.
	expired := time.Now().Add(-time.Minute)
	g := &grant.Grant{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   d.ID,
		ExpiresAt:    &expired,
		Status:       grant.StatusActive,
	}
	require.NoError(t, grants.Create(ctx, g))

	dec, err := svc.Verify(ctx, physician.ID, grant.ResourceDossier, d.ID)
	require.NoError(t, err)
	assert.False(t, dec.HasAccess)

	// The read flipped the stored status.
	stored, err := grants.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, grant.StatusExpired, stored.Status)
}

func TestGrantRevoke_OwnerOnlyAndImmediate(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	svc, _, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	g, err := svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDossier,
		ResourceID:   d.ID,
	}, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)

	err = svc.Revoke(ctx, g.ID, claimsFor(physician), "10.0.0.2")
	assert.ErrorIs(t, err, grant.ErrNotGrantOwner)

	require.NoError(t, svc.Revoke(ctx, g.ID, claimsFor(patient), "10.0.0.1"))

	dec, err := svc.Verify(ctx, physician.ID, grant.ResourceDossier, d.ID)
	require.NoError(t, err)
	assert.False(t, dec.HasAccess)
}

func TestGrantRevoke_NotFound(t *testing.T) {
	patient := testPatient()
	svc, _, _ := newGrantEnv(t)

	err := svc.Revoke(context.Background(), uuid.New(), claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, grant.ErrGrantNotFound)
}

func TestGrant_DocumentResolvesToOwningDossier(t *testing.T) {
	patient := testPatient()
	physician := testPhysician()
	svc, _, dossiers := newGrantEnv(t)
	ctx := context.Background()
	d := seedDossier(t, dossiers, patient.ID)

	doc := &dossier.Document{
		DossierID:  d.ID,
		FileName:   "report.pdf",
		StorageKey: "blobs/report",
		UploadedBy: patient.ID,
	}
	require.NoError(t, dossiers.CreateDocument(ctx, doc))

	g, err := svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDocument,
		ResourceID:   doc.ID,
	}, claimsFor(patient), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, grant.ResourceDocument, g.ResourceType)

	_, err = svc.Grant(ctx, &grant.GrantCommand{
		PatientID:    patient.ID,
		PhysicianID:  physician.ID,
		ResourceType: grant.ResourceDocument,
		ResourceID:   uuid.New(),
	}, claimsFor(patient), "10.0.0.1")
	assert.ErrorIs(t, err, dossier.ErrDocumentNotFound)
}

func TestGrantListMine_PatientsOnly(t *testing.T) {
	physician := testPhysician()
	svc, _, _ := newGrantEnv(t)

	_, err := svc.ListMine(context.Background(), claimsFor(physician))
	assert.ErrorIs(t, err, ErrForbidden)
}

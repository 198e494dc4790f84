package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/appointment"
)

type AppointmentService struct {
	repo     appointment.Repository
	users    UserLookup
	auditSvc *AuditService
	log      *zap.Logger
}

func NewAppointmentService(
	repo appointment.Repository,
	users UserLookup,
	auditSvc *AuditService,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{repo: repo, users: users, auditSvc: auditSvc, log: log}
}

// RequestAppointment books a teleconsultation slot with a physician. The slot
// starts in requested state until the physician confirms it.
func (s *AppointmentService) RequestAppointment(ctx context.Context, cmd *appointment.CreateAppointmentCommand, caller *domain.Claims, ip string) (*appointment.Appointment, error) {
	if caller.Role != domain.RolePatient {
		return nil, ErrForbidden
	}

	if cmd.ScheduledAt.Before(time.Now()) {
		return nil, appointment.ErrScheduledInPast
	}
	if cmd.DurationMins < 5 || cmd.DurationMins > 120 {
		return nil, appointment.ErrInvalidDuration
	}

	physician, err := s.users.FindUser(ctx, cmd.PhysicianID)
	if err != nil {
		return nil, fmt.Errorf("resolving physician: %w", err)
	}
	if physician == nil || physician.Role != domain.RolePhysician {
		return nil, &ValidationError{Fields: []string{"physician_id does not identify a physician"}}
	}

	a := &appointment.Appointment{
		PatientID:    caller.UserID,
		PhysicianID:  cmd.PhysicianID,
		ScheduledAt:  cmd.ScheduledAt,
		DurationMins: cmd.DurationMins,
		Status:       appointment.StatusRequested,
		Reason:       cmd.Reason,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
	})

	return a, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id uuid.UUID, caller *domain.Claims, ip string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}

	if caller.UserID != a.PatientID && caller.UserID != a.PhysicianID && caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: caller.Role,
		Action: domain.ActionRead, ResourceType: "appointment", ResourceID: id.String(), IPAddress: ip,
	})

	return a, nil
}

// ConfirmAppointment is physician-only: only the physician the slot was
// requested with may confirm it.
func (s *AppointmentService) ConfirmAppointment(ctx context.Context, id uuid.UUID, caller *domain.Claims, ip string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}
	if a.PhysicianID != caller.UserID {
		return nil, ErrForbidden
	}

	if err := a.Confirm(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: caller.Role,
		Action: domain.ActionUpdate, ResourceType: "appointment", ResourceID: id.String(), IPAddress: ip,
		Detail: `{"status":"confirmed"}`,
	})

	return a, nil
}

// CancelAppointment may be called by either party while the slot is still
// requested or confirmed.
func (s *AppointmentService) CancelAppointment(ctx context.Context, id uuid.UUID, reason string, caller *domain.Claims, ip string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}
	if caller.UserID != a.PatientID && caller.UserID != a.PhysicianID {
		return nil, ErrForbidden
	}

	if err := a.Cancel(reason, caller.UserID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: caller.Role,
		Action: domain.ActionUpdate, ResourceType: "appointment", ResourceID: id.String(), IPAddress: ip,
		Detail: fmt.Sprintf(`{"status":"cancelled","reason":"%s"}`, reason),
	})

	return a, nil
}

// CompleteAppointment is physician-only and closes a confirmed slot.
func (s *AppointmentService) CompleteAppointment(ctx context.Context, id uuid.UUID, caller *domain.Claims, ip string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}
	if a.PhysicianID != caller.UserID {
		return nil, ErrForbidden
	}

	if err := a.Complete(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: caller.UserID, UserRole: caller.Role,
		Action: domain.ActionUpdate, ResourceType: "appointment", ResourceID: id.String(), IPAddress: ip,
		Detail: `{"status":"completed"}`,
	})

	return a, nil
}

// ListAppointments pages through the caller's own appointments.
func (s *AppointmentService) ListAppointments(ctx context.Context, q *appointment.ListAppointmentsQuery, caller *domain.Claims) (*appointment.PagedAppointments, error) {
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	// Scope the query to the caller unless they are an admin.
	switch caller.Role {
	case domain.RolePatient:
		q.PatientID = &caller.UserID
	case domain.RolePhysician:
		q.PhysicianID = &caller.UserID
	case domain.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	return s.repo.List(ctx, q)
}

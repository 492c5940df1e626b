package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectPatient       = "patient"
	ObjectPractitioner  = "practitioner"
	ObjectAppointment   = "appointment"
	ObjectInvoice       = "invoice"
	ObjectPayment       = "payment"
	ObjectProduct       = "product"
	ObjectTreatmentPlan = "treatment_plan"
	ObjectUser          = "user"
	ObjectAuditLog      = "audit_log"
)

const (
	ActionPatientView   = "patient.view"
	ActionPatientCreate = "patient.create"
	ActionPatientUpdate = "patient.update"
	ActionPatientDelete = "patient.delete"

	ActionPractitionerView   = "practitioner.view"
	ActionPractitionerManage = "practitioner.manage"

	ActionAppointmentView       = "appointment.view"
	ActionAppointmentCreate     = "appointment.create"
	ActionAppointmentUpdate     = "appointment.update"
	ActionAppointmentConfirm    = "appointment.confirm"
	ActionAppointmentStart      = "appointment.start"
	ActionAppointmentComplete   = "appointment.complete"
	ActionAppointmentCancel     = "appointment.cancel"
	ActionAppointmentNoShow     = "appointment.no_show"
	ActionAppointmentReschedule = "appointment.reschedule"

	ActionInvoiceView       = "invoice.view"
	ActionInvoiceCreate     = "invoice.create"
	ActionInvoiceUpdate     = "invoice.update"
	ActionInvoiceSend       = "invoice.send"
	ActionInvoiceCancel     = "invoice.cancel"
	ActionInvoiceItemManage = "invoice.item_manage"

	ActionPaymentView   = "payment.view"
	ActionPaymentRecord = "payment.record"
	ActionPaymentVoid   = "payment.void"
	ActionPaymentRefund = "payment.refund"

	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"

	ActionTreatmentPlanView   = "treatment_plan.view"
	ActionTreatmentPlanCreate = "treatment_plan.create"
	ActionTreatmentPlanUpdate = "treatment_plan.update"

	ActionUserView   = "user.view"
	ActionUserManage = "user.manage"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, object, action)
		return err
	}

	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		role, err := s.roleForUser(ctx, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM users
		 WHERE id = ? AND status = 'active'
		 LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"subject": actorSubject(actorType, actorID),
	})
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, actorType, actorID, "authorization.granted", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionPaymentVoid, ActionPaymentRefund, ActionInvoiceCancel, ActionUserManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Admin and system actors may do everything.
		{"role:admin", "*", "*"},
		{"role:system", "*", "*"},

		// Dentist permissions
		{"role:dentist", ObjectPatient, ActionPatientView},
		{"role:dentist", ObjectPatient, ActionPatientCreate},
		{"role:dentist", ObjectPatient, ActionPatientUpdate},
		{"role:dentist", ObjectPractitioner, ActionPractitionerView},
		{"role:dentist", ObjectAppointment, ActionAppointmentView},
		{"role:dentist", ObjectAppointment, ActionAppointmentCreate},
		{"role:dentist", ObjectAppointment, ActionAppointmentUpdate},
		{"role:dentist", ObjectAppointment, ActionAppointmentConfirm},
		{"role:dentist", ObjectAppointment, ActionAppointmentStart},
		{"role:dentist", ObjectAppointment, ActionAppointmentComplete},
		{"role:dentist", ObjectAppointment, ActionAppointmentCancel},
		{"role:dentist", ObjectAppointment, ActionAppointmentNoShow},
		{"role:dentist", ObjectAppointment, ActionAppointmentReschedule},
		{"role:dentist", ObjectTreatmentPlan, ActionTreatmentPlanView},
		{"role:dentist", ObjectTreatmentPlan, ActionTreatmentPlanCreate},
		{"role:dentist", ObjectTreatmentPlan, ActionTreatmentPlanUpdate},
		{"role:dentist", ObjectInvoice, ActionInvoiceView},
		{"role:dentist", ObjectPayment, ActionPaymentView},
		{"role:dentist", ObjectProduct, ActionProductView},

		// Assistant permissions
		{"role:assistant", ObjectPatient, ActionPatientView},
		{"role:assistant", ObjectPractitioner, ActionPractitionerView},
		{"role:assistant", ObjectAppointment, ActionAppointmentView},
		{"role:assistant", ObjectAppointment, ActionAppointmentConfirm},
		{"role:assistant", ObjectAppointment, ActionAppointmentStart},
		{"role:assistant", ObjectTreatmentPlan, ActionTreatmentPlanView},
		{"role:assistant", ObjectProduct, ActionProductView},

		// Receptionist permissions
		{"role:receptionist", ObjectPatient, ActionPatientView},
		{"role:receptionist", ObjectPatient, ActionPatientCreate},
		{"role:receptionist", ObjectPatient, ActionPatientUpdate},
		{"role:receptionist", ObjectPractitioner, ActionPractitionerView},
		{"role:receptionist", ObjectAppointment, ActionAppointmentView},
		{"role:receptionist", ObjectAppointment, ActionAppointmentCreate},
		{"role:receptionist", ObjectAppointment, ActionAppointmentUpdate},
		{"role:receptionist", ObjectAppointment, ActionAppointmentConfirm},
		{"role:receptionist", ObjectAppointment, ActionAppointmentCancel},
		{"role:receptionist", ObjectAppointment, ActionAppointmentNoShow},
		{"role:receptionist", ObjectAppointment, ActionAppointmentReschedule},
		{"role:receptionist", ObjectInvoice, ActionInvoiceView},
		{"role:receptionist", ObjectInvoice, ActionInvoiceCreate},
		{"role:receptionist", ObjectInvoice, ActionInvoiceUpdate},
		{"role:receptionist", ObjectInvoice, ActionInvoiceSend},
		{"role:receptionist", ObjectInvoice, ActionInvoiceItemManage},
		{"role:receptionist", ObjectPayment, ActionPaymentView},
		{"role:receptionist", ObjectPayment, ActionPaymentRecord},
		{"role:receptionist", ObjectProduct, ActionProductView},
		{"role:receptionist", ObjectTreatmentPlan, ActionTreatmentPlanView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy[0], policy[1], policy[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}

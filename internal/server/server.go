// Package server exposes the practice API over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appointmentdomain "github.com/dentora/dentora/internal/appointment/domain"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/authorization"
	"github.com/dentora/dentora/internal/config"
	invoicedomain "github.com/dentora/dentora/internal/invoice/domain"
	"github.com/dentora/dentora/internal/observability"
	obslogger "github.com/dentora/dentora/internal/observability/logger"
	obsmetrics "github.com/dentora/dentora/internal/observability/metrics"
	obstracing "github.com/dentora/dentora/internal/observability/tracing"
	patientdomain "github.com/dentora/dentora/internal/patient/domain"
	paymentdomain "github.com/dentora/dentora/internal/payment/domain"
	productdomain "github.com/dentora/dentora/internal/product/domain"
	"github.com/dentora/dentora/internal/ratelimit"
	treatmentplandomain "github.com/dentora/dentora/internal/treatmentplan/domain"
	userdomain "github.com/dentora/dentora/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain.
// Handlers report failures through c.Error; ErrorHandlingMiddleware
// turns the last one into the JSON error envelope.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, _ *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger

	userSvc          userdomain.Service
	patientSvc       patientdomain.Service
	productSvc       productdomain.Service
	appointmentSvc   appointmentdomain.Service
	invoiceSvc       invoicedomain.Service
	paymentSvc       paymentdomain.Service
	treatmentPlanSvc treatmentplandomain.Service
	auditSvc         auditdomain.Service
	authzSvc         authorization.Service
	limiter          *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	DB  *gorm.DB
	Log *zap.Logger

	UserSvc          userdomain.Service
	PatientSvc       patientdomain.Service
	ProductSvc       productdomain.Service
	AppointmentSvc   appointmentdomain.Service
	InvoiceSvc       invoicedomain.Service
	PaymentSvc       paymentdomain.Service
	TreatmentPlanSvc treatmentplandomain.Service
	AuditSvc         auditdomain.Service
	AuthzSvc         authorization.Service
	Limiter          *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		db:               p.DB,
		log:              p.Log.Named("http.server"),
		userSvc:          p.UserSvc,
		patientSvc:       p.PatientSvc,
		productSvc:       p.ProductSvc,
		appointmentSvc:   p.AppointmentSvc,
		invoiceSvc:       p.InvoiceSvc,
		paymentSvc:       p.PaymentSvc,
		treatmentPlanSvc: p.TreatmentPlanSvc,
		auditSvc:         p.AuditSvc,
		authzSvc:         p.AuthzSvc,
		limiter:          p.Limiter,
	}

	s.registerAuthRoutes()
	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.LoginRateLimit(), s.Login)
	auth.POST("/logout", s.AuthRequired(), s.Logout)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Staff --------
	api.GET("/users", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.ListUsers)
	api.POST("/users", s.authorize(authorization.ObjectUser, authorization.ActionUserManage), s.CreateUser)
	api.GET("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.GetUserByID)
	api.PATCH("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserManage), s.UpdateUser)

	// -------- Practitioners --------
	api.GET("/practitioners", s.authorize(authorization.ObjectPractitioner, authorization.ActionPractitionerView), s.ListPractitioners)

	// -------- Patients --------
	api.GET("/patients", s.authorize(authorization.ObjectPatient, authorization.ActionPatientView), s.ListPatients)
	api.POST("/patients", s.authorize(authorization.ObjectPatient, authorization.ActionPatientCreate), s.CreatePatient)
	api.GET("/patients/:id", s.authorize(authorization.ObjectPatient, authorization.ActionPatientView), s.GetPatientByID)
	api.PATCH("/patients/:id", s.authorize(authorization.ObjectPatient, authorization.ActionPatientUpdate), s.UpdatePatient)

	// -------- Products (treatment catalog) --------
	api.GET("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.ListProducts)
	api.POST("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	api.GET("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.GetProductByID)
	api.PATCH("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductUpdate), s.UpdateProduct)

	// -------- Appointments --------
	api.GET("/appointments", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentView), s.ListAppointments)
	api.POST("/appointments", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentCreate), s.BookingRateLimit(), s.CreateAppointment)
	api.GET("/appointments/conflict-check", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentView), s.CheckAppointmentConflict)
	api.GET("/appointments/:id", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentView), s.GetAppointmentByID)
	api.POST("/appointments/:id/confirm", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentConfirm), s.ConfirmAppointment)
	api.POST("/appointments/:id/start", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentStart), s.StartAppointment)
	api.POST("/appointments/:id/complete", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentComplete), s.CompleteAppointment)
	api.POST("/appointments/:id/cancel", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentCancel), s.CancelAppointment)
	api.POST("/appointments/:id/no-show", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentNoShow), s.MarkAppointmentNoShow)
	api.POST("/appointments/:id/reschedule", s.authorize(authorization.ObjectAppointment, authorization.ActionAppointmentReschedule), s.BookingRateLimit(), s.RescheduleAppointment)

	// -------- Invoices --------
	api.GET("/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
	api.POST("/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceCreate), s.CreateInvoice)
	api.GET("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
	api.DELETE("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceUpdate), s.DeleteInvoice)
	api.POST("/invoices/:id/items", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceItemManage), s.AddInvoiceItem)
	api.DELETE("/invoices/:id/items/:itemId", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceItemManage), s.RemoveInvoiceItem)
	api.PATCH("/invoices/:id/discount", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceUpdate), s.UpdateInvoiceDiscount)
	api.POST("/invoices/:id/send", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceSend), s.SendInvoice)
	api.POST("/invoices/:id/cancel", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceCancel), s.CancelInvoice)

	// -------- Payments --------
	api.GET("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPayments)
	api.POST("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.ApplyPayment)
	api.GET("/payments/:id", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.GetPaymentByID)
	api.POST("/payments/:id/void", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentVoid), s.VoidPayment)
	api.POST("/payments/:id/refund", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRefund), s.RefundPayment)

	// -------- Treatment plans --------
	api.GET("/treatment-plans", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanView), s.ListTreatmentPlans)
	api.POST("/treatment-plans", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanCreate), s.CreateTreatmentPlan)
	api.GET("/treatment-plans/:id", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanView), s.GetTreatmentPlanByID)
	api.POST("/treatment-plans/:id/items", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanUpdate), s.AddTreatmentPlanItem)
	api.DELETE("/treatment-plans/:id/items/:itemId", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanUpdate), s.RemoveTreatmentPlanItem)
	api.POST("/treatment-plans/:id/accept", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanUpdate), s.AcceptTreatmentPlan)
	api.POST("/treatment-plans/:id/start", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanUpdate), s.StartTreatmentPlan)
	api.POST("/treatment-plans/:id/complete", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanUpdate), s.CompleteTreatmentPlan)
	api.POST("/treatment-plans/:id/cancel", s.authorize(authorization.ObjectTreatmentPlan, authorization.ActionTreatmentPlanUpdate), s.CancelTreatmentPlan)

	// -------- Audit logs --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/responsiv/pay/internal/config"
	"github.com/responsiv/pay/internal/customer"
	customerdomain "github.com/responsiv/pay/internal/customer/domain"
	"github.com/responsiv/pay/internal/gateway"
	"github.com/responsiv/pay/internal/gatewayconfig"
	gatewayconfigdomain "github.com/responsiv/pay/internal/gatewayconfig/domain"
	"github.com/responsiv/pay/internal/invoice"
	invoicedomain "github.com/responsiv/pay/internal/invoice/domain"
	"github.com/responsiv/pay/internal/locks"
	"github.com/responsiv/pay/internal/metrics"
	"github.com/responsiv/pay/internal/orchestrator"
	"github.com/responsiv/pay/internal/profile"
	profiledomain "github.com/responsiv/pay/internal/profile/domain"
	"github.com/responsiv/pay/internal/providers"
	"github.com/responsiv/pay/internal/providers/pdf"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	metrics.Module,
	locks.Module,
	gatewayconfig.Module,
	gateway.Module,
	customer.Module,
	invoice.Module,
	profile.Module,
	providers.Module,
	orchestrator.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
	genID  *snowflake.Node

	customerSvc      customerdomain.Service
	invoiceSvc       invoicedomain.Service
	profileSvc       profiledomain.Service
	taxSvc           taxdomain.Service
	gatewayConfigSvc gatewayconfigdomain.Service
	gateways         *gateway.Resolver
	orchestrator     *orchestrator.Orchestrator
	receipts         pdf.Generator
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	CustomerSvc      customerdomain.Service
	InvoiceSvc       invoicedomain.Service
	ProfileSvc       profiledomain.Service
	TaxSvc           taxdomain.Service
	GatewayConfigSvc gatewayconfigdomain.Service
	Gateways         *gateway.Resolver
	Orchestrator     *orchestrator.Orchestrator
	Receipts         pdf.Generator
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		db:               p.DB,
		log:              p.Log.Named("http.server"),
		genID:            p.GenID,
		customerSvc:      p.CustomerSvc,
		invoiceSvc:       p.InvoiceSvc,
		profileSvc:       p.ProfileSvc,
		taxSvc:           p.TaxSvc,
		gatewayConfigSvc: p.GatewayConfigSvc,
		gateways:         p.Gateways,
		orchestrator:     p.Orchestrator,
		receipts:         p.Receipts,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// Provider callbacks take the raw body; no auth, the payload
	// signature is the authentication.
	api.POST("/payments/callbacks/:provider", s.HandleCallback)

	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/initiate", s.InitiatePayment)
	api.POST("/invoices/:id/refund", s.RefundInvoice)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.POST("/invoices/:id/charge", s.ChargeInvoiceProfile)
	api.POST("/invoices/:id/settle_offline", s.SettleInvoiceOffline)
	api.GET("/invoices/:id/receipt.pdf", s.InvoiceReceiptPDF)

	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.POST("/customers/:id/profiles", s.CreateProfile)
	api.GET("/customers/:id/profiles", s.ListCustomerProfiles)

	api.GET("/profiles/:id/form", s.ProfileFormFields)
	api.POST("/profiles/:id", s.UpdateProfile)
	api.DELETE("/profiles/:id", s.DeleteProfile)

	api.PUT("/gateways/:provider/config", s.UpsertGatewayConfig)
	api.GET("/gateways", s.ListGateways)
	api.POST("/gateways/:provider/status", s.SetGatewayStatus)

	api.POST("/taxes", s.CreateTaxClass)
	api.GET("/taxes", s.ListTaxClasses)
	api.POST("/taxes/:id", s.UpdateTaxClass)
}

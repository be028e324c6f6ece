package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bakeway/api/internal/platform/config"
	"github.com/bakeway/api/internal/platform/storage"
	"github.com/bakeway/api/internal/repositories"
	"github.com/bakeway/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders   services.OrderService
	Payments services.PaymentService
	Catalog  services.CatalogService
	Invoices services.InvoiceGenerator
	System   services.SystemService
}

// Deps carries the externally constructed collaborators the container cannot
// build itself: the event publisher and the invoice artifact store are
// optional, the registry is not.
type Deps struct {
	Registry repositories.Registry
	Events   services.OrderEventPublisher
	Store    *storage.Client
	Logger   *zap.Logger
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore registry; tests can supply the in-memory one.
func NewContainer(ctx context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources held by the container.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps Deps) (Services, error) {
	var svc Services
	reg := deps.Registry

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	serviceLogger := func(name string) func(ctx context.Context, event string, fields map[string]any) {
		named := logger.Named(name)
		return func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			named.Info(event, zFields...)
		}
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: reg.Catalog(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	pricer, err := services.NewOrderPricingEngine(services.OrderPricingEngineDeps{
		TaxRate:     cfg.Pricing.TaxRate,
		DeliveryFee: cfg.Pricing.DeliveryFee,
		Discount:    cfg.Pricing.Discount,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}

	if deps.Store != nil {
		invoiceSvc, err := services.NewInvoiceService(services.InvoiceServiceDeps{
			Counters: reg.Counters(),
			Store:    &artifactStoreAdapter{client: deps.Store},
			Clock:    time.Now,
			Logger:   serviceLogger("invoices"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build invoice service: %w", err)
		}
		svc.Invoices = invoiceSvc
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Tracking:   reg.Tracking(),
		Counters:   reg.Counters(),
		Catalog:    catalogSvc,
		Pricer:     pricer,
		Invoices:   svc.Invoices,
		UnitOfWork: reg,
		Clock:      time.Now,
		Events:     deps.Events,
		Logger:     serviceLogger("orders"),

		CancelWindow:     cfg.Orders.CancelWindow,
		MaxItemQuantity:  cfg.Orders.MaxItemQuantity,
		MaxDistinctItems: cfg.Orders.MaxDistinctItems,
		DefaultCurrency:  cfg.Pricing.DefaultCurrency,
		DefaultPageSize:  cfg.Orders.DefaultPageSize,
		MaxPageSize:      cfg.Orders.MaxPageSize,
		InvoiceTimeout:   cfg.Orders.InvoiceTimeout,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:     reg.Orders(),
		Tracking:   reg.Tracking(),
		Payments:   reg.PaymentRecords(),
		UnitOfWork: reg,
		Clock:      time.Now,
		Events:     deps.Events,
		Logger:     serviceLogger("payments"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		Health: reg.Health(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// artifactStoreAdapter narrows the storage client to the invoice service contract.
type artifactStoreAdapter struct {
	client *storage.Client
}

func (a *artifactStoreAdapter) Upload(ctx context.Context, object, contentType string, data []byte) (services.ArtifactUploadResult, error) {
	result, err := a.client.Upload(ctx, object, contentType, data)
	if err != nil {
		return services.ArtifactUploadResult{}, err
	}
	return services.ArtifactUploadResult{
		Bucket:    result.Bucket,
		Object:    result.Object,
		URI:       result.URI,
		Size:      result.Size,
		CreatedAt: result.CreatedAt,
	}, nil
}

func (a *artifactStoreAdapter) SignedDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, time.Time, error) {
	return a.client.SignedDownloadURL(ctx, object, expiry)
}

package erpsync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/erp"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"

	"github.com/google/uuid"
)

type erpClient interface {
	FetchTemplates(ctx context.Context) ([]erp.Template, error)
	EnsureCustomer(ctx context.Context, email, name string) (int64, error)
	FetchVariantsForTemplates(ctx context.Context, templateIDs []int64) ([]erp.Variant, error)
	CreateSaleOrder(ctx context.Context, customerID int64, clientRef string, lines []erp.SaleOrderLine) (int64, error)
}

// SyncResult summarizes one catalog sweep.
type SyncResult struct {
	Synced int
	Failed int
	Errors error
}

// Service mirrors the catalog from the ERP and pushes settled orders
// back into it. Both directions are repeat-safe.
type Service interface {
	SyncCatalog(ctx context.Context) (*SyncResult, error)
	PushOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type service struct {
	client     erpClient
	products   catalog.ProductRepository
	ordersRepo orders.Repository
	logg       *logger.Logger
}

// NewService builds the ERP sync bridge.
func NewService(client erpClient, products catalog.ProductRepository, ordersRepo orders.Repository, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("erp client required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{
		client:     client,
		products:   products,
		ordersRepo: ordersRepo,
		logg:       logg,
	}, nil
}

// SyncCatalog pulls the sellable templates and upserts local products.
// A failing template never aborts the sweep; its error is collected and
// the sweep moves on.
func (s *service) SyncCatalog(ctx context.Context) (*SyncResult, error) {
	templates, err := s.client.FetchTemplates(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for _, tmpl := range templates {
		if err := s.upsertTemplate(ctx, tmpl); err != nil {
			result.Failed++
			result.Errors = multierr.Append(result.Errors, fmt.Errorf("template %d (%s): %w", tmpl.ID, tmpl.Name, err))
			s.warn(ctx, "catalog sync: template failed", err, map[string]any{"template_id": tmpl.ID})
			continue
		}
		result.Synced++
	}

	s.info(ctx, "catalog sync finished", map[string]any{
		"synced": result.Synced,
		"failed": result.Failed,
	})
	return result, nil
}

// upsertTemplate resolves the local product by the stored ERP link
// first, then by slug. The slug match writes the link so the next sweep
// resolves directly.
func (s *service) upsertTemplate(ctx context.Context, tmpl erp.Template) error {
	product, err := s.products.FindByExternalERPID(ctx, tmpl.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		slug := Slugify(tmpl.Name)
		product, err = s.products.FindBySlug(ctx, slug)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			erpID := tmpl.ID
			fresh := &models.Product{
				Slug:          slug,
				ExternalERPID: &erpID,
			}
			applyTemplate(fresh, tmpl)
			return s.products.Create(ctx, fresh)
		}
		erpID := tmpl.ID
		product.ExternalERPID = &erpID
	}

	applyTemplate(product, tmpl)
	return s.products.Update(ctx, product)
}

func applyTemplate(product *models.Product, tmpl erp.Template) {
	product.Name = tmpl.Name
	product.BasePriceCents = toCents(tmpl.ListPrice)
	product.Inventory = int(tmpl.QtyAvailable)
	product.InStock = tmpl.Active && product.Inventory > 0
	if len(tmpl.Tags) > 0 {
		product.CategoryTags = pq.StringArray(tmpl.Tags)
	}
}

// PushOrder mirrors one order into the ERP as a sale order. A second
// call for an already-pushed order is a no-op returning the stored id.
func (s *service) PushOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return 0, err
	}
	if order.ExternalERPID != nil {
		return *order.ExternalERPID, nil
	}

	customerName := order.Email
	if order.ShippingAddress != nil {
		customerName = order.ShippingAddress.FullName
	}
	customerID, err := s.client.EnsureCustomer(ctx, order.Email, customerName)
	if err != nil {
		return 0, err
	}

	lines, err := s.resolveLines(ctx, order)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeBusinessRule, "no order lines map to erp products")
	}

	remoteID, err := s.client.CreateSaleOrder(ctx, customerID, order.OrderNumber, lines)
	if err != nil {
		return 0, err
	}

	stored, err := s.ordersRepo.SetExternalERPID(ctx, order.ID, remoteID)
	if err != nil {
		return 0, err
	}
	if !stored {
		// A concurrent push won the write-once guard; keep its id.
		s.warn(ctx, "erp push raced, keeping first id", nil, map[string]any{"order_number": order.OrderNumber})
		fresh, err := s.ordersRepo.FindByID(ctx, order.ID)
		if err == nil && fresh.ExternalERPID != nil {
			return *fresh.ExternalERPID, nil
		}
	}

	s.info(ctx, "order pushed to erp", map[string]any{
		"order_number": order.OrderNumber,
		"erp_order_id": remoteID,
	})
	return remoteID, nil
}

// resolveLines maps order items to ERP sale lines. Linked template ids
// are collected first and their variants fetched in one batched call;
// items with no template link or no matching variant are skipped with a
// warning rather than failing the push.
func (s *service) resolveLines(ctx context.Context, order *models.Order) ([]erp.SaleOrderLine, error) {
	type candidate struct {
		item       models.OrderItem
		templateID int64
	}
	candidates := make([]candidate, 0, len(order.Items))
	templateIDs := make([]int64, 0, len(order.Items))
	seen := map[int64]bool{}
	for _, item := range order.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			s.warn(ctx, "erp push: product lookup failed, line skipped", err, map[string]any{
				"order_number": order.OrderNumber,
				"product_id":   item.ProductID,
			})
			continue
		}
		if product.ExternalERPID == nil {
			s.warn(ctx, "erp push: product has no erp link, line skipped", nil, map[string]any{
				"order_number": order.OrderNumber,
				"product_slug": product.Slug,
			})
			continue
		}
		candidates = append(candidates, candidate{item: item, templateID: *product.ExternalERPID})
		if !seen[*product.ExternalERPID] {
			seen[*product.ExternalERPID] = true
			templateIDs = append(templateIDs, *product.ExternalERPID)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	variants, err := s.client.FetchVariantsForTemplates(ctx, templateIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]erp.SaleOrderLine, 0, len(candidates))
	for _, c := range candidates {
		variantID := erp.MatchVariant(variants, c.templateID, c.item.SelectedVariants)
		if variantID == 0 {
			s.warn(ctx, "erp push: no variant matches selection, line skipped", nil, map[string]any{
				"order_number": order.OrderNumber,
				"product_slug": c.item.ProductSlug,
			})
			continue
		}
		lines = append(lines, erp.SaleOrderLine{
			VariantID: variantID,
			Quantity:  c.item.Quantity,
			UnitPrice: toMajor(c.item.UnitPriceCents),
		})
	}
	return lines, nil
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalizes a product name into the catalog's slug format.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStripRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func toCents(major float64) int64 {
	return decimal.NewFromFloat(major).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func toMajor(cents int64) float64 {
	f, _ := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Float64()
	return f
}

func (s *service) info(ctx context.Context, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

func (s *service) warn(ctx context.Context, msg string, err error, fields map[string]any) {
	if s.logg == nil {
		return
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}

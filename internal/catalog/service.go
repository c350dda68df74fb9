package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	AllocatorStore
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	ListReferences(ctx context.Context, dim Dimension, filter ReferenceFilter) ([]Reference, int, error)
}

// TxRepository exposes the writes and reads performed inside one transaction.
type TxRepository interface {
	FindReferenceByName(ctx context.Context, dim Dimension, name string) (Reference, error)
	FindReferenceByID(ctx context.Context, dim Dimension, id uuid.UUID) (Reference, error)
	// LastReferenceCode returns the numeric code of the most recently created entity.
	LastReferenceCode(ctx context.Context, dim Dimension) (string, bool, error)
	// InsertReference reports inserted=false when a unique key already exists.
	InsertReference(ctx context.Context, ref Reference) (Reference, bool, error)
	InsertProduct(ctx context.Context, product Product) (uuid.UUID, error)
	UpdateProduct(ctx context.Context, product Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReadCache is a versioned read-through cache for hot catalog reads.
type ReadCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// Observer receives write outcomes after commit.
type Observer interface {
	ProductWritten(op string, report WriteReport)
	WriteFailed(op string, err error)
}

// Service coordinates product upserts and catalog reads.
type Service struct {
	repo      RepositoryPort
	allocator *Allocator
	resolver  *Resolver
	audit     AuditPort
	observer  Observer
	cache     ReadCache
	logger    *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	ReferenceMode ReferenceMode
	Audit         AuditPort
	Observer      Observer
	// Cache is optional. Featured products and reference pages are served through it.
	Cache ReadCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger, cfg ServiceConfig) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	allocator, err := NewAllocator(repo)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		allocator: allocator,
		resolver:  NewResolver(cfg.ReferenceMode, logger),
		audit:     cfg.Audit,
		observer:  cfg.Observer,
		cache:     cfg.Cache,
		logger:    logger,
	}, nil
}

// Resolver exposes the reference resolver used by the service.
func (s *Service) Resolver() *Resolver { return s.resolver }

// CreateProductFromNames creates a product from reference names, creating missing
// references on the fly.
func (s *Service) CreateProductFromNames(ctx context.Context, input NamedCreateInput) (Product, error) {
	return s.create(ctx, "create_from_names", input.Attributes, func(ctx context.Context, tx TxRepository, dim Dimension) (Resolution, error) {
		return s.resolver.Resolve(ctx, tx, dim, input.ReferenceNames[dim])
	})
}

// CreateProduct creates a product from reference IDs. Missing dimensions link to Unknown.
func (s *Service) CreateProduct(ctx context.Context, input CreateInput) (Product, error) {
	return s.create(ctx, "create", input.Attributes, func(ctx context.Context, tx TxRepository, dim Dimension) (Resolution, error) {
		return s.resolver.ResolveID(ctx, tx, dim, input.ReferenceIDs[dim])
	})
}

type resolveFunc func(ctx context.Context, tx TxRepository, dim Dimension) (Resolution, error)

func (s *Service) create(ctx context.Context, op string, attrs Attributes, resolve resolveFunc) (Product, error) {
	product, err := newProduct(attrs)
	if err != nil {
		return Product{}, err
	}
	product.SKU, err = s.allocator.AllocateSKU(ctx, product.Name, product.SKU)
	if err != nil {
		return Product{}, s.fail(op, err)
	}
	product.Code, err = s.allocator.AllocateCode(ctx)
	if err != nil {
		return Product{}, s.fail(op, err)
	}

	var (
		result Product
		report WriteReport
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report = WriteReport{}
		for _, dim := range Dimensions {
			res, err := resolve(ctx, tx, dim)
			if err != nil {
				return err
			}
			product.ReferenceIDs[dim] = res.ID
			report.track(dim, res)
		}
		id, err := tx.InsertProduct(ctx, product)
		if err != nil {
			return err
		}
		result, err = tx.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return Product{}, s.fail(op, err)
	}

	s.committed(ctx, op, result, report)
	return result, nil
}

// UpdateProduct applies a partial update. Only supplied fields change.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateInput) (Product, error) {
	const op = "update"
	if err := validateUpdate(input); err != nil {
		return Product{}, err
	}
	var (
		result Product
		report WriteReport
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report = WriteReport{}
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.SKU != nil {
			sku := strings.TrimSpace(*input.SKU)
			if sku != current.SKU {
				return fmt.Errorf("%w: %s", ErrImmutableSKU, current.SKU)
			}
		}
		applyUpdate(&current, input)
		if current.MinQty > current.MaxQty {
			return validationError("min_qty %d exceeds max_qty %d", current.MinQty, current.MaxQty)
		}
		for _, dim := range Dimensions {
			res, touched, err := s.resolveForUpdate(ctx, tx, dim, input)
			if err != nil {
				return err
			}
			if !touched {
				continue
			}
			current.ReferenceIDs[dim] = res.ID
			report.track(dim, res)
		}
		if err := tx.UpdateProduct(ctx, current); err != nil {
			return err
		}
		result, err = tx.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return Product{}, s.fail(op, err)
	}

	s.committed(ctx, op, result, report)
	return result, nil
}

func (s *Service) resolveForUpdate(ctx context.Context, tx TxRepository, dim Dimension, input UpdateInput) (Resolution, bool, error) {
	if raw, ok := input.ReferenceIDs[dim]; ok {
		if strings.TrimSpace(raw) != "" {
			res, err := s.resolver.ResolveID(ctx, tx, dim, raw)
			return res, true, err
		}
		// An empty ID defers to a supplied name.
		if name, ok := input.ReferenceNames[dim]; ok {
			res, err := s.resolver.Resolve(ctx, tx, dim, name)
			return res, true, err
		}
		res, err := s.resolver.ResolveUnknown(ctx, tx, dim)
		return res, true, err
	}
	if name, ok := input.ReferenceNames[dim]; ok {
		res, err := s.resolver.Resolve(ctx, tx, dim, name)
		return res, true, err
	}
	return Resolution{}, false, nil
}

// ToggleProductStatus flips the active flag of a product.
func (s *Service) ToggleProductStatus(ctx context.Context, id uuid.UUID) (Product, error) {
	const op = "toggle_status"
	var result Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current.IsActive = !current.IsActive
		if err := tx.UpdateProduct(ctx, current); err != nil {
			return err
		}
		result, err = tx.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return Product{}, s.fail(op, err)
	}
	s.committed(ctx, op, result, WriteReport{})
	return result, nil
}

// GetProduct returns a hydrated product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return product, nil
}

// ListProducts returns a page of products, newest first.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) (ProductPage, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	items, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return ProductPage{}, fmt.Errorf("catalog: list products: %w", err)
	}
	return ProductPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// FeaturedLimit caps FeaturedProducts and SearchProductsByName.
const FeaturedLimit = 10

// FeaturedProducts returns active featured products, newest first.
func (s *Service) FeaturedProducts(ctx context.Context) ([]Product, error) {
	items, err := cached(ctx, s, func(ctx context.Context) ([]Product, error) {
		active, featured := true, true
		items, _, err := s.repo.ListProducts(ctx, ProductFilter{IsActive: &active, IsFeatured: &featured, Limit: FeaturedLimit})
		return items, err
	}, "catalog", "featured")
	if err != nil {
		return nil, fmt.Errorf("catalog: featured products: %w", err)
	}
	return items, nil
}

// SearchProductsByName returns active products whose name contains term.
func (s *Service) SearchProductsByName(ctx context.Context, term string) ([]Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, validationError("search term required")
	}
	active := true
	items, _, err := s.repo.ListProducts(ctx, ProductFilter{Search: term, IsActive: &active, Limit: FeaturedLimit, NameOnly: true})
	if err != nil {
		return nil, fmt.Errorf("catalog: search products: %w", err)
	}
	return items, nil
}

// ListReferences returns a page of one dimension's entities.
func (s *Service) ListReferences(ctx context.Context, dim Dimension, filter ReferenceFilter) (ReferencePage, error) {
	if !dim.Valid() {
		return ReferencePage{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	filter.Search = NormalizeName(filter.Search)
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	page, err := cached(ctx, s, func(ctx context.Context) (ReferencePage, error) {
		items, total, err := s.repo.ListReferences(ctx, dim, filter)
		if err != nil {
			return ReferencePage{}, err
		}
		return ReferencePage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
	}, "catalog", "references", string(dim), filter.Search, strconv.Itoa(filter.Limit), strconv.Itoa(filter.Offset))
	if err != nil {
		return ReferencePage{}, fmt.Errorf("catalog: list %s: %w", dim, err)
	}
	return page, nil
}

// cached serves load through the read cache. Cache failures fall back to load.
func cached[T any](ctx context.Context, s *Service, load func(context.Context) (T, error), parts ...string) (T, error) {
	if s.cache == nil {
		return load(ctx)
	}
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.WarnContext(ctx, "catalog cache unavailable", slog.Any("error", err))
		return load(ctx)
	}
	var (
		out     T
		loadErr error
	)
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		value, err := load(ctx)
		loadErr = err
		return value, err
	})
	if loadErr != nil {
		var zero T
		return zero, loadErr
	}
	if err != nil {
		s.logger.WarnContext(ctx, "catalog cache read failed", slog.String("key", key), slog.Any("error", err))
		return load(ctx)
	}
	return out, nil
}

func (s *Service) fail(op string, err error) error {
	if s.observer != nil {
		s.observer.WriteFailed(op, err)
	}
	if domainError(err) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}

func (s *Service) committed(ctx context.Context, op string, product Product, report WriteReport) {
	if s.observer != nil {
		s.observer.ProductWritten(op, report)
	}
	s.logger.InfoContext(ctx, "product written",
		slog.String("op", op),
		slog.String("product_id", product.ID.String()),
		slog.String("sku", product.SKU),
		slog.Int("references_created", len(report.Created)),
		slog.Int("references_substituted", len(report.Substituted)))
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "catalog cache bump failed", slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	created := make([]string, 0, len(report.Created))
	for _, dim := range report.Created {
		created = append(created, string(dim))
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   "product." + op,
		Entity:   "product",
		EntityID: product.ID.String(),
		Meta: map[string]any{
			"sku":                product.SKU,
			"code":               product.Code,
			"references_created": created,
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("op", op), slog.Any("error", err))
	}
}

func (r *WriteReport) track(dim Dimension, res Resolution) {
	if res.Created {
		r.Created = append(r.Created, dim)
	}
	if res.Substituted {
		r.Substituted = append(r.Substituted, dim)
	}
}

func newProduct(attrs Attributes) (Product, error) {
	name := strings.TrimSpace(attrs.Name)
	if name == "" {
		return Product{}, validationError("name required")
	}
	p := Product{
		SKU:                   strings.TrimSpace(attrs.SKU),
		Name:                  name,
		PurchaseRate:          attrs.PurchaseRate,
		SalesRateExcDisAndTax: attrs.SalesRateExcDisAndTax,
		SalesRateIncDisAndTax: attrs.SalesRateIncDisAndTax,
		DiscountAmount:        valueOr(attrs.DiscountAmount, 0),
		MinQty:                valueOr(attrs.MinQty, DefaultMinQty),
		MaxQty:                valueOr(attrs.MaxQty, DefaultMaxQty),
		IsActive:              valueOr(attrs.IsActive, true),
		DisplayOnPOS:          valueOr(attrs.DisplayOnPOS, true),
		IsBatch:               valueOr(attrs.IsBatch, false),
		AutoFillOnDemandSheet: valueOr(attrs.AutoFillOnDemandSheet, false),
		NonInventoryItem:      valueOr(attrs.NonInventoryItem, false),
		IsDeal:                valueOr(attrs.IsDeal, false),
		IsFeatured:            valueOr(attrs.IsFeatured, false),
		Description:           trimmedOrNil(attrs.Description),
		TariffCode:            trimmedOrNil(attrs.TariffCode),
		ReferenceIDs:          make(map[Dimension]uuid.UUID, len(Dimensions)),
	}
	if p.PurchaseRate < 0 || p.SalesRateExcDisAndTax < 0 || p.SalesRateIncDisAndTax < 0 || p.DiscountAmount < 0 {
		return Product{}, validationError("rates must not be negative")
	}
	if p.MinQty < 0 || p.MaxQty < 0 {
		return Product{}, validationError("quantities must not be negative")
	}
	if p.MinQty > p.MaxQty {
		return Product{}, validationError("min_qty %d exceeds max_qty %d", p.MinQty, p.MaxQty)
	}
	return p, nil
}

func validateUpdate(input UpdateInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return validationError("name must not be blank")
	}
	for _, v := range []*float64{input.PurchaseRate, input.SalesRateExcDisAndTax, input.SalesRateIncDisAndTax, input.DiscountAmount} {
		if v != nil && *v < 0 {
			return validationError("rates must not be negative")
		}
	}
	for _, v := range []*int{input.MinQty, input.MaxQty} {
		if v != nil && *v < 0 {
			return validationError("quantities must not be negative")
		}
	}
	for dim := range input.ReferenceIDs {
		if !dim.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
		}
	}
	for dim := range input.ReferenceNames {
		if !dim.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
		}
	}
	return nil
}

func applyUpdate(p *Product, in UpdateInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	setIf(&p.PurchaseRate, in.PurchaseRate)
	setIf(&p.SalesRateExcDisAndTax, in.SalesRateExcDisAndTax)
	setIf(&p.SalesRateIncDisAndTax, in.SalesRateIncDisAndTax)
	setIf(&p.DiscountAmount, in.DiscountAmount)
	setIf(&p.MinQty, in.MinQty)
	setIf(&p.MaxQty, in.MaxQty)
	setIf(&p.IsActive, in.IsActive)
	setIf(&p.DisplayOnPOS, in.DisplayOnPOS)
	setIf(&p.IsBatch, in.IsBatch)
	setIf(&p.AutoFillOnDemandSheet, in.AutoFillOnDemandSheet)
	setIf(&p.NonInventoryItem, in.NonInventoryItem)
	setIf(&p.IsDeal, in.IsDeal)
	setIf(&p.IsFeatured, in.IsFeatured)
	if in.Description != nil {
		p.Description = trimmedOrNil(in.Description)
	}
	if in.TariffCode != nil {
		p.TariffCode = trimmedOrNil(in.TariffCode)
	}
	if p.ReferenceIDs == nil {
		p.ReferenceIDs = make(map[Dimension]uuid.UUID, len(Dimensions))
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func valueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > shared.MaxPerPage {
		limit = shared.MaxPerPage
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// IsConflict reports whether err means the product could not be written because of a
// uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSKU) || errors.Is(err, ErrReferenceConflict)
}

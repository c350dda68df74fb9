package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler exposes the catalog over JSON HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. guard wraps write routes; nil leaves them open.
func NewHandler(logger *slog.Logger, service *Service, guard func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), guard: guard}
}

// MountRoutes registers catalog routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/featured", h.featuredProducts)
		r.Get("/search", h.searchProducts)
		r.Get("/{id}", h.getProduct)
		r.Group(func(r chi.Router) {
			if h.guard != nil {
				r.Use(h.guard)
			}
			r.Post("/", h.createProduct)
			r.Post("/by-names", h.createProductFromNames)
			r.Patch("/{id}", h.updateProduct)
			r.Post("/{id}/toggle", h.toggleProduct)
		})
	})
	r.Get("/references/{dimension}", h.listReferences)
}

type attributesRequest struct {
	SKU                   string   `json:"sku" validate:"omitempty,max=64"`
	Name                  string   `json:"name" validate:"required,max=255"`
	PurchaseRate          float64  `json:"purchase_rate" validate:"gte=0"`
	SalesRateExcDisAndTax float64  `json:"sales_rate_exc_dis_and_tax" validate:"gte=0"`
	SalesRateIncDisAndTax float64  `json:"sales_rate_inc_dis_and_tax" validate:"gte=0"`
	DiscountAmount        *float64 `json:"discount_amount" validate:"omitempty,gte=0"`
	MinQty                *int     `json:"min_qty" validate:"omitempty,gte=0"`
	MaxQty                *int     `json:"max_qty" validate:"omitempty,gte=0"`
	IsActive              *bool    `json:"is_active"`
	DisplayOnPOS          *bool    `json:"display_on_pos"`
	IsBatch               *bool    `json:"is_batch"`
	AutoFillOnDemandSheet *bool    `json:"auto_fill_on_demand_sheet"`
	NonInventoryItem      *bool    `json:"non_inventory_item"`
	IsDeal                *bool    `json:"is_deal"`
	IsFeatured            *bool    `json:"is_featured"`
	Description           *string  `json:"description" validate:"omitempty,max=2000"`
	TariffCode            *string  `json:"pct_or_hs_code" validate:"omitempty,max=64"`
}

func (a attributesRequest) toAttributes() Attributes {
	return Attributes{
		SKU:                   a.SKU,
		Name:                  a.Name,
		PurchaseRate:          a.PurchaseRate,
		SalesRateExcDisAndTax: a.SalesRateExcDisAndTax,
		SalesRateIncDisAndTax: a.SalesRateIncDisAndTax,
		DiscountAmount:        a.DiscountAmount,
		MinQty:                a.MinQty,
		MaxQty:                a.MaxQty,
		IsActive:              a.IsActive,
		DisplayOnPOS:          a.DisplayOnPOS,
		IsBatch:               a.IsBatch,
		AutoFillOnDemandSheet: a.AutoFillOnDemandSheet,
		NonInventoryItem:      a.NonInventoryItem,
		IsDeal:                a.IsDeal,
		IsFeatured:            a.IsFeatured,
		Description:           a.Description,
		TariffCode:            a.TariffCode,
	}
}

type updateRequest struct {
	SKU                   *string  `json:"sku" validate:"omitempty,max=64"`
	Name                  *string  `json:"name" validate:"omitempty,max=255"`
	PurchaseRate          *float64 `json:"purchase_rate" validate:"omitempty,gte=0"`
	SalesRateExcDisAndTax *float64 `json:"sales_rate_exc_dis_and_tax" validate:"omitempty,gte=0"`
	SalesRateIncDisAndTax *float64 `json:"sales_rate_inc_dis_and_tax" validate:"omitempty,gte=0"`
	DiscountAmount        *float64 `json:"discount_amount" validate:"omitempty,gte=0"`
	MinQty                *int     `json:"min_qty" validate:"omitempty,gte=0"`
	MaxQty                *int     `json:"max_qty" validate:"omitempty,gte=0"`
	IsActive              *bool    `json:"is_active"`
	DisplayOnPOS          *bool    `json:"display_on_pos"`
	IsBatch               *bool    `json:"is_batch"`
	AutoFillOnDemandSheet *bool    `json:"auto_fill_on_demand_sheet"`
	NonInventoryItem      *bool    `json:"non_inventory_item"`
	IsDeal                *bool    `json:"is_deal"`
	IsFeatured            *bool    `json:"is_featured"`
	Description           *string  `json:"description" validate:"omitempty,max=2000"`
	TariffCode            *string  `json:"pct_or_hs_code" validate:"omitempty,max=64"`
}

type referenceResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	IsActive     bool      `json:"is_active"`
	DisplayOnPOS bool      `json:"display_on_pos"`
	Slug         *string   `json:"slug,omitempty"`
	Percentage   *float64  `json:"percentage,omitempty"`
}

type productResponse struct {
	ID                    uuid.UUID                       `json:"id"`
	SKU                   string                          `json:"sku"`
	Code                  string                          `json:"code"`
	Name                  string                          `json:"name"`
	PurchaseRate          float64                         `json:"purchase_rate"`
	SalesRateExcDisAndTax float64                         `json:"sales_rate_exc_dis_and_tax"`
	SalesRateIncDisAndTax float64                         `json:"sales_rate_inc_dis_and_tax"`
	DiscountAmount        float64                         `json:"discount_amount"`
	MinQty                int                             `json:"min_qty"`
	MaxQty                int                             `json:"max_qty"`
	IsActive              bool                            `json:"is_active"`
	DisplayOnPOS          bool                            `json:"display_on_pos"`
	IsBatch               bool                            `json:"is_batch"`
	AutoFillOnDemandSheet bool                            `json:"auto_fill_on_demand_sheet"`
	NonInventoryItem      bool                            `json:"non_inventory_item"`
	IsDeal                bool                            `json:"is_deal"`
	IsFeatured            bool                            `json:"is_featured"`
	Description           *string                         `json:"description"`
	TariffCode            *string                         `json:"pct_or_hs_code"`
	References            map[Dimension]referenceResponse `json:"references"`
	CreatedAt             time.Time                       `json:"created_at"`
	UpdatedAt             time.Time                       `json:"updated_at"`
}

type pageResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func toReferenceResponse(ref Reference) referenceResponse {
	return referenceResponse{
		ID:           ref.ID,
		Name:         ref.Name,
		Code:         ref.Code,
		IsActive:     ref.IsActive,
		DisplayOnPOS: ref.DisplayOnPOS,
		Slug:         ref.Slug,
		Percentage:   ref.Percentage,
	}
}

func toProductResponse(p Product) productResponse {
	refs := make(map[Dimension]referenceResponse, len(p.References))
	for dim, ref := range p.References {
		refs[dim] = toReferenceResponse(ref)
	}
	return productResponse{
		ID:                    p.ID,
		SKU:                   p.SKU,
		Code:                  p.Code,
		Name:                  p.Name,
		PurchaseRate:          p.PurchaseRate,
		SalesRateExcDisAndTax: p.SalesRateExcDisAndTax,
		SalesRateIncDisAndTax: p.SalesRateIncDisAndTax,
		DiscountAmount:        p.DiscountAmount,
		MinQty:                p.MinQty,
		MaxQty:                p.MaxQty,
		IsActive:              p.IsActive,
		DisplayOnPOS:          p.DisplayOnPOS,
		IsBatch:               p.IsBatch,
		AutoFillOnDemandSheet: p.AutoFillOnDemandSheet,
		NonInventoryItem:      p.NonInventoryItem,
		IsDeal:                p.IsDeal,
		IsFeatured:            p.IsFeatured,
		Description:           p.Description,
		TariffCode:            p.TariffCode,
		References:            refs,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func toProductResponses(items []Product) []productResponse {
	out := make([]productResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toProductResponse(p))
	}
	return out
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req attributesRequest
	raw, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	ids, err := referenceFields(raw, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), CreateInput{Attributes: req.toAttributes(), ReferenceIDs: ids})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *Handler) createProductFromNames(w http.ResponseWriter, r *http.Request) {
	var req attributesRequest
	raw, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	names, err := referenceFields(raw, "name")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.service.CreateProductFromNames(r.Context(), NamedCreateInput{Attributes: req.toAttributes(), ReferenceNames: names})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	raw, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	ids, err := referenceFields(raw, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	names, err := referenceFields(raw, "name")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	input := UpdateInput{
		SKU:                   req.SKU,
		Name:                  req.Name,
		PurchaseRate:          req.PurchaseRate,
		SalesRateExcDisAndTax: req.SalesRateExcDisAndTax,
		SalesRateIncDisAndTax: req.SalesRateIncDisAndTax,
		DiscountAmount:        req.DiscountAmount,
		MinQty:                req.MinQty,
		MaxQty:                req.MaxQty,
		IsActive:              req.IsActive,
		DisplayOnPOS:          req.DisplayOnPOS,
		IsBatch:               req.IsBatch,
		AutoFillOnDemandSheet: req.AutoFillOnDemandSheet,
		NonInventoryItem:      req.NonInventoryItem,
		IsDeal:                req.IsDeal,
		IsFeatured:            req.IsFeatured,
		Description:           req.Description,
		TariffCode:            req.TariffCode,
		ReferenceIDs:          ids,
		ReferenceNames:        names,
	}
	if _, present := raw["description"]; present && input.Description == nil {
		// An explicit null clears the description.
		input.Description = new(string)
	}
	if _, present := raw["pct_or_hs_code"]; present && input.TariffCode == nil {
		input.TariffCode = new(string)
	}
	product, err := h.service.UpdateProduct(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) toggleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.service.ToggleProductStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := pageParams(q.Get("page"), q.Get("per_page"))
	filter := ProductFilter{Search: q.Get("search"), Limit: perPage, Offset: (page - 1) * perPage}
	var err error
	if filter.CategoryID, err = optionalUUID(q.Get("category_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.SubcategoryID, err = optionalUUID(q.Get("subcategory_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.IsActive, err = optionalBool(q.Get("is_active")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.DisplayOnPOS, err = optionalBool(q.Get("display_on_pos")); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pageResponse[productResponse]{
		Items:      toProductResponses(result.Items),
		Pagination: shared.NewPagination(page, result.Limit, result.Total),
	})
}

func (h *Handler) featuredProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FeaturedProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": toProductResponses(items)})
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.SearchProductsByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": toProductResponses(items)})
}

func (h *Handler) listReferences(w http.ResponseWriter, r *http.Request) {
	dim, err := ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, perPage := pageParams(q.Get("page"), q.Get("per_page"))
	result, err := h.service.ListReferences(r.Context(), dim, ReferenceFilter{
		Search: q.Get("search"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]referenceResponse, 0, len(result.Items))
	for _, ref := range result.Items {
		items = append(items, toReferenceResponse(ref))
	}
	httpx.JSON(w, http.StatusOK, pageResponse[referenceResponse]{
		Items:      items,
		Pagination: shared.NewPagination(page, result.Limit, result.Total),
	})
}

// decode reads the body into target and also returns the raw object so callers can tell an
// omitted key from an explicit null.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) (map[string]json.RawMessage, bool) {
	body, err := httpx.ReadBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	if err := json.Unmarshal(body, target); err != nil {
		h.writeError(w, r, validationError("malformed json: %v", err))
		return nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		h.writeError(w, r, validationError("malformed json: %v", err))
		return nil, false
	}
	if err := h.validator.Struct(target); err != nil {
		h.writeError(w, r, validationError("%v", err))
		return nil, false
	}
	return raw, true
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, validationError("invalid product id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		err = httpx.Classify(httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateSKU), errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrReferenceConflict):
		err = httpx.Classify(httpx.ErrDuplicate, err)
	case errors.Is(err, ErrImmutableSKU), errors.Is(err, ErrStaleReference):
		err = httpx.Classify(httpx.ErrUnprocessable, err)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownDimension):
		err = httpx.Classify(httpx.ErrValidation, err)
	case errors.Is(err, httpx.ErrValidation):
	default:
		h.logger.ErrorContext(r.Context(), "catalog request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// referenceFields collects "<dimension>_<suffix>" keys. A null value is kept as "" so the
// service relinks that dimension to Unknown.
func referenceFields(raw map[string]json.RawMessage, suffix string) (map[Dimension]string, error) {
	out := make(map[Dimension]string)
	for _, dim := range Dimensions {
		value, ok := raw[string(dim)+"_"+suffix]
		if !ok {
			continue
		}
		var s *string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, validationError("%s_%s must be a string or null", dim, suffix)
		}
		if s == nil {
			out[dim] = ""
			continue
		}
		out[dim] = *s
	}
	return out, nil
}

func pageParams(pageRaw, perPageRaw string) (int, int) {
	page, _ := strconv.Atoi(pageRaw)
	perPage, _ := strconv.Atoi(perPageRaw)
	p := shared.NewPagination(page, perPage, 0)
	return p.Page, p.PerPage
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, validationError("invalid uuid %q", raw)
	}
	return &id, nil
}

func optionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid boolean %q", ErrValidation, raw)
	}
	return &v, nil
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

const (
	constraintProductSKU  = "products_sku_key"
	constraintProductCode = "products_code_key"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxSettings bounds every catalog transaction.
type TxSettings struct {
	Timeout time.Duration
	MaxWait time.Duration
}

// Repository provides PostgreSQL persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
	queries
}

// NewRepository builds a Repository.
func NewRepository(pool *pgxpool.Pool, settings TxSettings) *Repository {
	return &Repository{
		pool: pool,
		opts: db.TxOptions{
			IsoLevel: pgx.ReadCommitted,
			Timeout:  settings.Timeout,
			MaxWait:  settings.MaxWait,
		},
		queries: queries{db: pool},
	}
}

// WithTx executes the callback inside a read-committed transaction. Read committed lets a
// conflicting reference insert observe the row committed by the concurrent winner.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, r.opts, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{queries: queries{db: tx}})
	})
}

type txRepo struct {
	queries
}

type queries struct {
	db dbtx
}

// SKUExists reports whether a product already uses sku.
func (q queries) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`, sku).Scan(&exists)
	return exists, err
}

// LastProductCode returns the code of the most recently created product.
func (q queries) LastProductCode(ctx context.Context) (string, bool, error) {
	var code string
	err := q.db.QueryRow(ctx, `SELECT code FROM products ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

func (q queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return q.getProduct(ctx, id, "")
}

func (q queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	return q.getProduct(ctx, id, " FOR UPDATE OF p")
}

func (q queries) getProduct(ctx context.Context, id uuid.UUID, lock string) (Product, error) {
	product, err := scanProduct(q.db.QueryRow(ctx, hydratedProductSelect+` WHERE p.id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return product, err
}

// ListProducts returns filtered products, newest first, along with the total match count.
func (q queries) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	where, args := productWhere(filter)

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	sql := fmt.Sprintf(`%s%s ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d`, hydratedProductSelect, where, len(args)-1, len(args))
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, product)
	}
	return out, total, rows.Err()
}

func productWhere(filter ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		if filter.NameOnly {
			conds = append(conds, fmt.Sprintf("p.name ILIKE $%d", n))
		} else {
			conds = append(conds, fmt.Sprintf("(p.name ILIKE $%[1]d OR p.sku ILIKE $%[1]d OR p.description ILIKE $%[1]d)", n))
		}
	}
	if filter.CategoryID != nil {
		add("p.category_id = $%d", *filter.CategoryID)
	}
	if filter.SubcategoryID != nil {
		add("p.subcategory_id = $%d", *filter.SubcategoryID)
	}
	if filter.IsActive != nil {
		add("p.is_active = $%d", *filter.IsActive)
	}
	if filter.DisplayOnPOS != nil {
		add("p.display_on_pos = $%d", *filter.DisplayOnPOS)
	}
	if filter.IsFeatured != nil {
		add("p.is_featured = $%d", *filter.IsFeatured)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListReferences returns entities of dim ordered by name.
func (q queries) ListReferences(ctx context.Context, dim Dimension, filter ReferenceFilter) ([]Reference, int, error) {
	where := ""
	var args []any
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = ` WHERE name ILIKE $1`
	}
	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+dim.Table()+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY name, id LIMIT $%d OFFSET $%d`, referenceColumns(dim), dim.Table(), where, len(args)-1, len(args))
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Reference
	for rows.Next() {
		ref, err := scanReference(dim, rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ref)
	}
	return out, total, rows.Err()
}

func (q queries) FindReferenceByName(ctx context.Context, dim Dimension, name string) (Reference, error) {
	match := `name = $1`
	if dim.FoldsCase() {
		match = `lower(name) = lower($1)`
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at LIMIT 1`, referenceColumns(dim), dim.Table(), match)
	ref, err := scanReference(dim, q.db.QueryRow(ctx, sql, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reference{}, ErrNotFound
	}
	return ref, err
}

func (q queries) FindReferenceByID(ctx context.Context, dim Dimension, id uuid.UUID) (Reference, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, referenceColumns(dim), dim.Table())
	ref, err := scanReference(dim, q.db.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reference{}, ErrNotFound
	}
	return ref, err
}

func (q queries) LastReferenceCode(ctx context.Context, dim Dimension) (string, bool, error) {
	sql := fmt.Sprintf(`SELECT code FROM %s ORDER BY created_at DESC, id DESC LIMIT 1`, dim.Table())
	var code string
	err := q.db.QueryRow(ctx, sql).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

func (q queries) InsertReference(ctx context.Context, ref Reference) (Reference, bool, error) {
	cols := []string{"name", "code", "is_active", "display_on_pos"}
	args := []any{ref.Name, ref.Code, ref.IsActive, ref.DisplayOnPOS}
	switch ref.Dimension {
	case DimensionCategory:
		cols = append(cols, "slug")
		args = append(args, ref.Slug)
	case DimensionTax:
		cols = append(cols, "percentage")
		args = append(args, ref.Percentage)
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING RETURNING %s`,
		ref.Dimension.Table(), strings.Join(cols, ", "), strings.Join(placeholders, ", "), referenceColumns(ref.Dimension))
	created, err := scanReference(ref.Dimension, q.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reference{}, false, nil
	}
	if err != nil {
		return Reference{}, false, err
	}
	return created, true, nil
}

func (q queries) InsertProduct(ctx context.Context, p Product) (uuid.UUID, error) {
	cols := append([]string{}, productWriteColumns...)
	args := productWriteArgs(p)
	for _, dim := range Dimensions {
		cols = append(cols, dim.Column())
		args = append(args, p.ReferenceIDs[dim])
	}
	cols = append(cols, "sku", "code")
	args = append(args, p.SKU, p.Code)
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(`INSERT INTO products (%s) VALUES (%s) RETURNING id`, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	var id uuid.UUID
	if err := q.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if db.IsUniqueViolation(err, constraintProductSKU) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, p.SKU)
		}
		if db.IsUniqueViolation(err, constraintProductCode) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateCode, p.Code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (q queries) UpdateProduct(ctx context.Context, p Product) error {
	cols := append([]string{}, productWriteColumns...)
	args := productWriteArgs(p)
	for _, dim := range Dimensions {
		cols = append(cols, dim.Column())
		args = append(args, p.ReferenceIDs[dim])
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, p.ID)
	sql := fmt.Sprintf(`UPDATE products SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var productWriteColumns = []string{
	"name", "purchase_rate", "sales_rate_exc_dis_and_tax", "sales_rate_inc_dis_and_tax",
	"discount_amount", "min_qty", "max_qty", "is_active", "display_on_pos", "is_batch",
	"auto_fill_on_demand_sheet", "non_inventory_item", "is_deal", "is_featured",
	"description", "pct_or_hs_code",
}

func productWriteArgs(p Product) []any {
	return []any{
		p.Name, p.PurchaseRate, p.SalesRateExcDisAndTax, p.SalesRateIncDisAndTax,
		p.DiscountAmount, p.MinQty, p.MaxQty, p.IsActive, p.DisplayOnPOS, p.IsBatch,
		p.AutoFillOnDemandSheet, p.NonInventoryItem, p.IsDeal, p.IsFeatured,
		p.Description, p.TariffCode,
	}
}

func referenceColumns(dim Dimension) string {
	cols := "id, name, code, is_active, display_on_pos, created_at, updated_at"
	switch dim {
	case DimensionCategory:
		cols += ", slug"
	case DimensionTax:
		cols += ", percentage"
	}
	return cols
}

func scanReference(dim Dimension, row pgx.Row) (Reference, error) {
	ref := Reference{Dimension: dim}
	dest := []any{&ref.ID, &ref.Name, &ref.Code, &ref.IsActive, &ref.DisplayOnPOS, &ref.CreatedAt, &ref.UpdatedAt}
	switch dim {
	case DimensionCategory:
		dest = append(dest, &ref.Slug)
	case DimensionTax:
		dest = append(dest, &ref.Percentage)
	}
	if err := row.Scan(dest...); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

var hydratedProductSelect = buildHydratedSelect()

func buildHydratedSelect() string {
	var cols, joins strings.Builder
	cols.WriteString(`p.id, p.sku, p.code, p.name, p.purchase_rate, p.sales_rate_exc_dis_and_tax,
	p.sales_rate_inc_dis_and_tax, p.discount_amount, p.min_qty, p.max_qty, p.is_active,
	p.display_on_pos, p.is_batch, p.auto_fill_on_demand_sheet, p.non_inventory_item, p.is_deal,
	p.is_featured, p.description, p.pct_or_hs_code, p.created_at, p.updated_at`)
	for i, dim := range Dimensions {
		alias := fmt.Sprintf("r%d", i)
		for _, col := range strings.Split(referenceColumns(dim), ", ") {
			fmt.Fprintf(&cols, ", %s.%s", alias, col)
		}
		fmt.Fprintf(&joins, " JOIN %s %s ON %s.id = p.%s", dim.Table(), alias, alias, dim.Column())
	}
	return "SELECT " + cols.String() + " FROM products p" + joins.String()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	dest := []any{
		&p.ID, &p.SKU, &p.Code, &p.Name, &p.PurchaseRate, &p.SalesRateExcDisAndTax,
		&p.SalesRateIncDisAndTax, &p.DiscountAmount, &p.MinQty, &p.MaxQty, &p.IsActive,
		&p.DisplayOnPOS, &p.IsBatch, &p.AutoFillOnDemandSheet, &p.NonInventoryItem, &p.IsDeal,
		&p.IsFeatured, &p.Description, &p.TariffCode, &p.CreatedAt, &p.UpdatedAt,
	}
	refs := make([]Reference, len(Dimensions))
	for i, dim := range Dimensions {
		ref := &refs[i]
		ref.Dimension = dim
		dest = append(dest, &ref.ID, &ref.Name, &ref.Code, &ref.IsActive, &ref.DisplayOnPOS, &ref.CreatedAt, &ref.UpdatedAt)
		switch dim {
		case DimensionCategory:
			dest = append(dest, &ref.Slug)
		case DimensionTax:
			dest = append(dest, &ref.Percentage)
		}
	}
	if err := row.Scan(dest...); err != nil {
		return Product{}, err
	}
	p.ReferenceIDs = make(map[Dimension]uuid.UUID, len(Dimensions))
	p.References = make(map[Dimension]Reference, len(Dimensions))
	for _, ref := range refs {
		p.ReferenceIDs[ref.Dimension] = ref.ID
		p.References[ref.Dimension] = ref
	}
	return p, nil
}

var (
	_ RepositoryPort = (*Repository)(nil)
	_ TxRepository   = (*txRepo)(nil)
)

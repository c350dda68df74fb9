package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is a transactional in-memory RepositoryPort. Transactions are serialised and
// rolled back by restoring a snapshot.
type memStore struct {
	mu       sync.Mutex
	refs     map[Dimension][]Reference
	products []Product
	clock    time.Time

	referenceInserts map[Dimension]int
	failReference    map[Dimension]error
	failProduct      error
}

func newMemStore() *memStore {
	return &memStore{
		refs:             make(map[Dimension][]Reference),
		clock:            time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		referenceInserts: make(map[Dimension]int),
		failReference:    make(map[Dimension]error),
	}
}

type memSnapshot struct {
	refs     map[Dimension][]Reference
	products []Product
	inserts  map[Dimension]int
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		refs:     make(map[Dimension][]Reference, len(m.refs)),
		products: make([]Product, len(m.products)),
		inserts:  make(map[Dimension]int, len(m.referenceInserts)),
	}
	for dim, list := range m.refs {
		snap.refs[dim] = append([]Reference(nil), list...)
	}
	for i, p := range m.products {
		snap.products[i] = cloneProduct(p)
	}
	for dim, n := range m.referenceInserts {
		snap.inserts[dim] = n
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.refs = snap.refs
	m.products = snap.products
	m.referenceInserts = snap.inserts
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx, &memTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) SKUExists(_ context.Context, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.productBySKU(sku)
	return ok, nil
}

func (m *memStore) LastProductCode(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.products) == 0 {
		return "", false, nil
	}
	return m.products[len(m.products)-1].Code, true, nil
}

func (m *memStore) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hydrated(id)
}

func (m *memStore) ListProducts(_ context.Context, filter ProductFilter) ([]Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Product
	for i := len(m.products) - 1; i >= 0; i-- {
		p := m.products[i]
		if !productMatches(p, filter) {
			continue
		}
		hydrated, err := m.hydrated(p.ID)
		if err != nil {
			return nil, 0, err
		}
		matched = append(matched, hydrated)
	}
	total := len(matched)
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

func (m *memStore) ListReferences(_ context.Context, dim Dimension, filter ReferenceFilter) ([]Reference, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Reference
	for _, ref := range m.refs[dim] {
		if filter.Search != "" && !strings.Contains(strings.ToLower(ref.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, ref)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

func (m *memStore) countRefs(dim Dimension) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs[dim])
}

func (m *memStore) countAllRefs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, list := range m.refs {
		n += len(list)
	}
	return n
}

func (m *memStore) countProducts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

// seedReference inserts a reference outside any transaction.
func (m *memStore) seedReference(dim Dimension, name string) Reference {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, _, _ := (&memTx{store: m}).InsertReference(context.Background(), Reference{
		Dimension: dim, Name: name, Code: "S" + name, IsActive: true, DisplayOnPOS: true,
	})
	return ref
}

func (m *memStore) productBySKU(sku string) (Product, bool) {
	for _, p := range m.products {
		if p.SKU == sku {
			return p, true
		}
	}
	return Product{}, false
}

func (m *memStore) hydrated(id uuid.UUID) (Product, error) {
	for _, p := range m.products {
		if p.ID != id {
			continue
		}
		out := cloneProduct(p)
		out.References = make(map[Dimension]Reference, len(Dimensions))
		for dim, refID := range p.ReferenceIDs {
			for _, ref := range m.refs[dim] {
				if ref.ID == refID {
					out.References[dim] = ref
				}
			}
		}
		return out, nil
	}
	return Product{}, ErrNotFound
}

type memTx struct {
	store *memStore
}

func (t *memTx) FindReferenceByName(_ context.Context, dim Dimension, name string) (Reference, error) {
	for _, ref := range t.store.refs[dim] {
		if sameName(dim, ref.Name, name) {
			return ref, nil
		}
	}
	return Reference{}, ErrNotFound
}

func (t *memTx) FindReferenceByID(_ context.Context, dim Dimension, id uuid.UUID) (Reference, error) {
	for _, ref := range t.store.refs[dim] {
		if ref.ID == id {
			return ref, nil
		}
	}
	return Reference{}, ErrNotFound
}

func (t *memTx) LastReferenceCode(_ context.Context, dim Dimension) (string, bool, error) {
	list := t.store.refs[dim]
	if len(list) == 0 {
		return "", false, nil
	}
	return list[len(list)-1].Code, true, nil
}

func (t *memTx) InsertReference(_ context.Context, ref Reference) (Reference, bool, error) {
	if err := t.store.failReference[ref.Dimension]; err != nil {
		return Reference{}, false, err
	}
	for _, existing := range t.store.refs[ref.Dimension] {
		if sameName(ref.Dimension, existing.Name, ref.Name) || existing.Code == ref.Code {
			return Reference{}, false, nil
		}
	}
	now := t.store.tick()
	ref.ID = uuid.New()
	ref.CreatedAt, ref.UpdatedAt = now, now
	t.store.refs[ref.Dimension] = append(t.store.refs[ref.Dimension], ref)
	t.store.referenceInserts[ref.Dimension]++
	return ref, true, nil
}

func (t *memTx) InsertProduct(_ context.Context, p Product) (uuid.UUID, error) {
	if t.store.failProduct != nil {
		return uuid.Nil, t.store.failProduct
	}
	if _, ok := t.store.productBySKU(p.SKU); ok {
		return uuid.Nil, ErrDuplicateSKU
	}
	for _, existing := range t.store.products {
		if existing.Code == p.Code {
			return uuid.Nil, ErrDuplicateCode
		}
	}
	for _, dim := range Dimensions {
		if p.ReferenceIDs[dim] == uuid.Nil {
			return uuid.Nil, errors.New("null value in column " + dim.Column())
		}
	}
	now := t.store.tick()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	p.References = nil
	t.store.products = append(t.store.products, cloneProduct(p))
	return p.ID, nil
}

func (t *memTx) UpdateProduct(_ context.Context, p Product) error {
	for i, existing := range t.store.products {
		if existing.ID == p.ID {
			p.CreatedAt = existing.CreatedAt
			p.UpdatedAt = t.store.tick()
			p.References = nil
			t.store.products[i] = cloneProduct(p)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	return t.store.hydrated(id)
}

func (t *memTx) GetProductForUpdate(_ context.Context, id uuid.UUID) (Product, error) {
	return t.store.hydrated(id)
}

func sameName(dim Dimension, a, b string) bool {
	if dim.FoldsCase() {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func productMatches(p Product, f ProductFilter) bool {
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(p.Name), term)
		if !f.NameOnly {
			hit = hit || strings.Contains(strings.ToLower(p.SKU), term)
			if p.Description != nil {
				hit = hit || strings.Contains(strings.ToLower(*p.Description), term)
			}
		}
		if !hit {
			return false
		}
	}
	if f.CategoryID != nil && p.ReferenceIDs[DimensionCategory] != *f.CategoryID {
		return false
	}
	if f.SubcategoryID != nil && p.ReferenceIDs[DimensionSubcategory] != *f.SubcategoryID {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.DisplayOnPOS != nil && p.DisplayOnPOS != *f.DisplayOnPOS {
		return false
	}
	if f.IsFeatured != nil && p.IsFeatured != *f.IsFeatured {
		return false
	}
	return true
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneProduct(p Product) Product {
	out := p
	out.ReferenceIDs = make(map[Dimension]uuid.UUID, len(p.ReferenceIDs))
	for dim, id := range p.ReferenceIDs {
		out.ReferenceIDs[dim] = id
	}
	if p.References != nil {
		out.References = make(map[Dimension]Reference, len(p.References))
		for dim, ref := range p.References {
			out.References[dim] = ref
		}
	}
	return out
}

var _ RepositoryPort = (*memStore)(nil)

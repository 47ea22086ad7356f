package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/repository"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// fakeProducts mirrors the conditional update of the Mongo repository under a mutex.
type fakeProducts struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Product
	// afterGet runs once GetByID has returned its copy, outside the lock.
	afterGet func(id primitive.ObjectID)
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{items: map[primitive.ObjectID]*models.Product{}}
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.items {
		if other.OwnerID == p.OwnerID && other.SKU == p.SKU {
			return &utils.DuplicateKeyError{Field: "sku"}
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakeProducts) get(ownerID, id primitive.ObjectID) (*models.Product, error) {
	p, ok := f.items[id]
	if !ok || p.OwnerID != ownerID {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) GetByID(_ context.Context, ownerID, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	p, err := f.get(ownerID, id)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	cp := *p
	hook := f.afterGet
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (f *fakeProducts) List(_ context.Context, filter repository.ProductFilter) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.items {
		if p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.IsActive != nil && p.IsActive != *filter.IsActive {
			continue
		}
		if filter.LowStock && !p.LowStockAlert {
			continue
		}
		if filter.Category != "" && string(p.Category) != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, int64(len(out)), nil
}

func (f *fakeProducts) Update(_ context.Context, ownerID, id primitive.ObjectID, u repository.ProductUpdate) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if u.SKU != nil {
		for _, other := range f.items {
			if other.ID != id && other.OwnerID == ownerID && other.SKU == *u.SKU {
				return nil, &utils.DuplicateKeyError{Field: "sku"}
			}
		}
	}
	applyProductUpdate(p, u)
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Brand != nil {
		p.Brand = *u.Brand
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	p.LowStockAlert = models.IsLowStock(p.Quantity, p.ReorderPoint)
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) AdjustStock(_ context.Context, ownerID, id primitive.ObjectID, delta int, op models.StockOperation) (*models.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(ownerID, id)
	if err != nil {
		return nil, 0, err
	}
	prev := p.Quantity
	if err := models.ApplyStockAdjustment(p, delta, op); err != nil {
		return nil, 0, err
	}
	cp := *p
	return &cp, prev, nil
}

func (f *fakeProducts) CountActive(_ context.Context, ownerID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.items {
		if p.OwnerID == ownerID && p.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeProducts) CountLowStock(_ context.Context, ownerID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.items {
		if p.OwnerID == ownerID && p.IsActive && p.LowStockAlert {
			n++
		}
	}
	return n, nil
}

func (f *fakeProducts) quantity(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Quantity
}

type fakeSales struct {
	mu       sync.Mutex
	items    map[primitive.ObjectID]*models.Sale
	invoices map[string]bool
	// collide makes the next n inserts fail as invoice collisions.
	collide int
	creates int
	totals  int
}

func newFakeSales() *fakeSales {
	return &fakeSales{items: map[primitive.ObjectID]*models.Sale{}, invoices: map[string]bool{}}
}

func (f *fakeSales) Create(_ context.Context, s *models.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.collide > 0 {
		f.collide--
		return &utils.DuplicateKeyError{Field: "invoiceNumber"}
	}
	if f.invoices[s.InvoiceNumber] {
		return &utils.DuplicateKeyError{Field: "invoiceNumber"}
	}
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	f.invoices[s.InvoiceNumber] = true
	cp := *s
	cp.Items = append([]models.SaleItem(nil), s.Items...)
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSales) GetByID(_ context.Context, ownerID, id primitive.ObjectID) (*models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok || s.OwnerID != ownerID {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSales) List(_ context.Context, filter repository.SaleFilter) ([]models.Sale, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Sale{}
	for _, s := range f.items {
		if s.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Window != nil && !filter.Window.Contains(s.CreatedAt) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeSales) UpdateStatus(_ context.Context, ownerID, id primitive.ObjectID, status models.SaleStatus, payment models.PaymentStatus) (*models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok || s.OwnerID != ownerID {
		return nil, utils.ErrNotFound
	}
	if s.Status != models.SaleCompleted {
		return nil, utils.ErrInvalidStatusChange
	}
	s.Status = status
	s.PaymentStatus = payment
	cp := *s
	return &cp, nil
}

func (f *fakeSales) Totals(_ context.Context, ownerID primitive.ObjectID, w utils.Window) (models.SalesTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals++
	t := models.SalesTotals{Revenue: decimal.Zero}
	for _, s := range f.items {
		if s.OwnerID != ownerID || s.Status != models.SaleCompleted || !w.Contains(s.CreatedAt) {
			continue
		}
		t.Count++
		t.Revenue = t.Revenue.Add(s.Total)
		for _, item := range s.Items {
			t.ItemsSold += int64(item.Quantity)
		}
	}
	return t, nil
}

func (f *fakeSales) DailyTotals(_ context.Context, ownerID primitive.ObjectID, w utils.Window, loc *time.Location) ([]models.DailySales, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDay := map[string]*models.DailySales{}
	for _, s := range f.items {
		if s.OwnerID != ownerID || s.Status != models.SaleCompleted || !w.Contains(s.CreatedAt) {
			continue
		}
		day := s.CreatedAt.In(loc).Format(utils.DateLayout)
		d, ok := byDay[day]
		if !ok {
			d = &models.DailySales{Date: day, Revenue: decimal.Zero}
			byDay[day] = d
		}
		d.Count++
		d.Revenue = d.Revenue.Add(s.Total)
	}
	out := []models.DailySales{}
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeSales) put(s *models.Sale) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	f.items[s.ID] = s
}

func (f *fakeSales) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeUsers struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{items: map[primitive.ObjectID]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range f.items {
		if other.Username == u.Username {
			return &utils.DuplicateKeyError{Field: "username"}
		}
		if other.Email == u.Email {
			return &utils.DuplicateKeyError{Field: "email"}
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.OwnerID.IsZero() {
		u.OwnerID = u.ID
	}
	cp := *u
	f.items[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(username))
	for _, u := range f.items {
		if u.Username == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return utils.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, p repository.UserProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.StoreName != nil {
		u.StoreName = *p.StoreName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.Settings != nil {
		u.Settings = *p.Settings
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) set(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.IsActive = true
	cp := *u
	f.items[u.ID] = &cp
}

type fakeMovements struct {
	mu    sync.Mutex
	items []models.StockMovement
}

func (f *fakeMovements) Create(_ context.Context, m *models.StockMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *m)
	return nil
}

func (f *fakeMovements) ListByProduct(_ context.Context, ownerID, productID primitive.ObjectID, limit int) ([]models.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.StockMovement{}
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.items[i]
		if m.OwnerID == ownerID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMovements) all() []models.StockMovement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.StockMovement(nil), f.items...)
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*models.Dashboard
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*models.Dashboard{}}
}

func (f *fakeCache) Get(_ context.Context, ownerID string) (*models.Dashboard, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.entries[ownerID]
	return d, ok
}

func (f *fakeCache) Set(_ context.Context, ownerID string, d *models.Dashboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[ownerID] = d
}

func (f *fakeCache) Invalidate(_ context.Context, ownerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, ownerID)
	f.invalidated++
}

type fakeNotifier struct {
	mu       sync.Mutex
	sales    []string
	lowStock []string
}

func (f *fakeNotifier) NotifySaleCreated(ownerID string, sale *models.Sale) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, sale.InvoiceNumber)
}

func (f *fakeNotifier) NotifyLowStock(ownerID string, p *models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lowStock = append(f.lowStock, p.SKU)
}

type fakeImages struct {
	keys []string
}

func (f *fakeImages) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

// fixture wires the services over fresh fakes with one store owner.
type fixture struct {
	products  *fakeProducts
	sales     *fakeSales
	users     *fakeUsers
	movements *fakeMovements
	cache     *fakeCache
	notifier  *fakeNotifier
	images    *fakeImages

	productSvc *ProductService
	saleSvc    *SaleService
	reportSvc  *ReportService

	owner *models.User
	clerk *models.User
}

func newFixture() *fixture {
	f := &fixture{
		products:  newFakeProducts(),
		sales:     newFakeSales(),
		users:     newFakeUsers(),
		movements: &fakeMovements{},
		cache:     newFakeCache(),
		notifier:  &fakeNotifier{},
		images:    &fakeImages{},
	}

	ownerID := primitive.NewObjectID()
	settings := models.DefaultStoreSettings()
	settings.TaxRate = decimal.NewFromInt(10)
	f.owner = &models.User{ID: ownerID, OwnerID: ownerID, Username: "owner", Role: models.RoleAdmin, Settings: settings}
	f.clerk = &models.User{ID: primitive.NewObjectID(), OwnerID: ownerID, Username: "clerk", Role: models.RoleSales, Settings: settings}
	f.users.set(f.owner)
	f.users.set(f.clerk)

	f.productSvc = NewProductService(f.products, f.movements, f.users, f.cache, f.notifier, f.images, nil)
	f.saleSvc = NewSaleService(f.sales, f.users, f.productSvc, utils.NewInvoiceGenerator(time.UTC), f.cache, f.notifier, nil, time.UTC)
	f.reportSvc = NewReportService(f.products, f.sales, f.cache, time.UTC)
	return f
}

func (f *fixture) addProduct(sku string, qty, reorder int, price string) *models.Product {
	p := &models.Product{
		OwnerID:         f.owner.OwnerID,
		SKU:             sku,
		Name:            "Item " + sku,
		Category:        models.CategoryTShirts,
		Size:            models.Size("M"),
		Quantity:        qty,
		Price:           decimal.RequireFromString(price),
		ReorderPoint:    reorder,
		ReorderQuantity: models.DefaultReorderQuantity,
		IsActive:        true,
	}
	models.RefreshStockFlags(p)
	if err := f.products.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// menuReadTimeout bounds a storage read shared by several callers.
const menuReadTimeout = 5 * time.Second

// MenuSnapshot is today's menu in the exact order customers see it.
type MenuSnapshot struct {
	MenuID string
	Name   string
	Items  []models.SessionMenuItem
}

// MenuResolver finds the active menu for today in the business time zone.
// Results are cached briefly; concurrent misses share one storage read.
type MenuResolver struct {
	store    storage.Store
	location *time.Location
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedMenu // by menu date
}

type cachedMenu struct {
	snapshot *MenuSnapshot
	expires  time.Time
}

// NewMenuResolver creates a resolver. A zero ttl disables caching.
func NewMenuResolver(store storage.Store, location *time.Location, ttl time.Duration) *MenuResolver {
	if location == nil {
		location = time.UTC
	}
	return &MenuResolver{
		store:    store,
		location: location,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[string]cachedMenu),
	}
}

// ActiveMenuForToday returns today's orderable items sorted by name.
// A missing menu, or one with nothing left to sell, is a KindNotFound error.
func (r *MenuResolver) ActiveMenuForToday(ctx context.Context) (*MenuSnapshot, error) {
	date := models.MenuDateFor(r.now().In(r.location))

	if snapshot, ok := r.cached(date); ok {
		return snapshot, nil
	}

	// The read is shared, so one caller giving up must not fail the others.
	ch := r.group.DoChan(date, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), menuReadTimeout)
		defer cancel()

		menu, err := r.store.GetActiveMenuForDate(readCtx, date)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "resolve menu", err)
		}
		if err != nil {
			return nil, newError(KindDependency, "resolve menu", err)
		}

		snapshot := buildSnapshot(menu)
		if len(snapshot.Items) == 0 {
			return nil, newError(KindNotFound, "resolve menu", fmt.Errorf("menu %s has no available items", menu.MenuID))
		}
		r.remember(date, snapshot)
		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return nil, newError(KindDependency, "resolve menu", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copySnapshot(res.Val.(*MenuSnapshot)), nil
	}
}

// Invalidate drops cached menus after an admin change.
func (r *MenuResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cachedMenu)
}

func (r *MenuResolver) cached(date string) (*MenuSnapshot, bool) {
	if r.ttl <= 0 {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[date]
	if !ok || !r.now().Before(entry.expires) {
		return nil, false
	}
	return copySnapshot(entry.snapshot), true
}

func (r *MenuResolver) remember(date string, snapshot *MenuSnapshot) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[date] = cachedMenu{snapshot: snapshot, expires: r.now().Add(r.ttl)}
}

// buildSnapshot drops sold out items and orders the rest by name, then ID,
// so the same menu always numbers its items the same way.
func buildSnapshot(menu *models.Menu) *MenuSnapshot {
	items := make([]models.SessionMenuItem, 0, len(menu.Items))
	for _, item := range menu.Items {
		if item.SoldOut {
			continue
		}
		items = append(items, models.SessionMenuItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			PriceCents: item.PriceCents,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if a != b {
			return a < b
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MenuItemID < items[j].MenuItemID
	})

	return &MenuSnapshot{MenuID: menu.MenuID, Name: menu.Name, Items: items}
}

func copySnapshot(s *MenuSnapshot) *MenuSnapshot {
	c := *s
	c.Items = append([]models.SessionMenuItem(nil), s.Items...)
	return &c
}

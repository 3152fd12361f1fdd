package models

import (
	"time"

	"gorm.io/gorm"
)

// MenuDateLayout is the layout of Menu.MenuDate.
const MenuDateLayout = "2006-01-02"

// Menu is the list of dishes a business sells on a given day.
// Only one menu per date is active at a time.
type Menu struct {
	gorm.Model

	MenuID   string     `json:"menu_id" gorm:"uniqueIndex;size:64"`
	Name     string     `json:"name"`
	MenuDate string     `json:"menu_date" gorm:"index;size:10"` // YYYY-MM-DD
	Active   bool       `json:"active" gorm:"index"`
	Items    []MenuItem `json:"items" gorm:"foreignKey:MenuID;references:MenuID"`
}

// MenuItem is a single dish. Prices are integer cents.
type MenuItem struct {
	gorm.Model

	MenuItemID  string `json:"menu_item_id" gorm:"uniqueIndex;size:64"`
	MenuID      string `json:"menu_id" gorm:"index;size:64"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" gorm:"not null;check:price_cents >= 0"`
	SoldOut     bool   `json:"sold_out"`
}

// BeforeCreate assigns public IDs for the menu and its items
func (m *Menu) BeforeCreate(tx *gorm.DB) error {
	m.AssignIDs()
	return nil
}

// BeforeCreate assigns the menu item's public ID
func (i *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if i.MenuItemID == "" {
		i.MenuItemID = NewID("ITM")
	}
	return nil
}

// AssignIDs fills in the menu ID and propagates it to the items.
func (m *Menu) AssignIDs() {
	if m.MenuID == "" {
		m.MenuID = NewID("MNU")
	}
	for i := range m.Items {
		m.Items[i].MenuID = m.MenuID
		if m.Items[i].MenuItemID == "" {
			m.Items[i].MenuItemID = NewID("ITM")
		}
	}
}

// MenuDateFor formats t as a menu date in t's location.
func MenuDateFor(t time.Time) string {
	return t.Format(MenuDateLayout)
}

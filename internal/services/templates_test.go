package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
)

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$0.00", FormatCents(0))
	assert.Equal(t, "$0.05", FormatCents(5))
	assert.Equal(t, "$17.00", FormatCents(1700))
	assert.Equal(t, "$12.99", FormatCents(1299))
	assert.Equal(t, "$1234.50", FormatCents(123450))
	assert.Equal(t, "-$3.10", FormatCents(-310))
}

func TestFormatMenu(t *testing.T) {
	text := FormatMenu(&MenuSnapshot{
		Name: "Friday lunch",
		Items: []models.SessionMenuItem{
			{Name: "Burger", PriceCents: 1200},
			{Name: "Drink", PriceCents: 300},
		},
	})

	assert.Equal(t, "Friday lunch:\n1. Burger - $12.00\n2. Drink - $3.00\n\nReply with the item numbers you want (e.g. 1, 3).", text)
}

func TestFormatConfirmPrompt(t *testing.T) {
	items := []models.SessionItem{
		{Name: "Burger", UnitPriceCents: 1200, Quantity: 1},
		{Name: "Fries", UnitPriceCents: 500, Quantity: 1},
	}
	text := formatConfirmPrompt(items, models.SumItems(items))

	assert.Contains(t, text, "- Burger $12.00")
	assert.Contains(t, text, "- Fries $5.00")
	assert.Contains(t, text, "Total: $17.00")
	assert.Contains(t, text, msgConfirmPrompt)
}

func TestFormatOwnerNotice(t *testing.T) {
	event := queue.OrderEvent{
		Type:             queue.EventOrderPlaced,
		OrderID:          "ORD-1",
		Phone:            "+15551234567",
		Items:            []string{"Burger", "Fries"},
		TotalAmountCents: 1700,
	}
	assert.Equal(t, "New order ORD-1 ($17.00) from +15551234567 - Burger, Fries", FormatOwnerNotice(event))

	event.Type = queue.EventOrderPaid
	assert.Contains(t, FormatOwnerNotice(event), "PAID")
}

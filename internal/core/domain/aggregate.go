package domain

import "github.com/shopspring/decimal"

// Total returns the sum of unit price times quantity, rounded to 2 decimal places.
func Total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Product.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2)
}

func ItemCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func IsInCart(items []LineItem, productID string) bool {
	return QuantityOf(items, productID) > 0
}

// QuantityOf returns the quantity of productID, or 0 if it is not in the cart.
func QuantityOf(items []LineItem, productID string) int {
	for _, it := range items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

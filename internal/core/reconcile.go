package core

import "strings"

// matchInventoryItem resolves a request line against the inventory. SKU wins
// over name: an exact match on a non-empty trimmed SKU is taken first, then a
// case-insensitive trimmed name match. Items are scanned in creation order so
// duplicates resolve deterministically.
func matchInventoryItem(items []InventoryItem, line RequestLine) (InventoryItem, bool) {
	sku := strings.TrimSpace(line.SKU)
	if sku != "" {
		for _, item := range items {
			if strings.TrimSpace(item.SKU) == sku {
				return item, true
			}
		}
	}
	name := strings.ToLower(strings.TrimSpace(line.Item))
	if name != "" {
		for _, item := range items {
			if strings.ToLower(strings.TrimSpace(item.Name)) == name {
				return item, true
			}
		}
	}
	return InventoryItem{}, false
}

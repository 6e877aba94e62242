package types

// ProductRecord is the shape returned by a product lookup-by-code.
// Quantity is the number of units one scan of Code represents (normally 1).
type ProductRecord struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Quantity    int    `json:"quantity"`
	MinQuantity *int   `json:"min_quantity,omitempty"`
}

// UnitsPerScan returns Quantity, treating non-positive values as a single unit.
func (p ProductRecord) UnitsPerScan() int {
	if p.Quantity <= 0 {
		return 1
	}
	return p.Quantity
}

package cart

import (
	"strings"
	"sync"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// Line is one product in a movement cart. Code is the unique key.
type Line struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	MinQuantity *int   `json:"min_quantity,omitempty"`
}

// Cart is the in-memory list of lines being assembled for a stock movement.
// It is safe for concurrent use; the scan queue merges into it while HTTP
// handlers read snapshots.
type Cart struct {
	movementType enums.MovementType

	mu    sync.RWMutex
	lines []Line
	index map[string]int
}

func New(movementType enums.MovementType) *Cart {
	return &Cart{
		movementType: movementType,
		index:        make(map[string]int),
	}
}

func (c *Cart) MovementType() enums.MovementType {
	return c.movementType
}

// Merge adds one scan of record to the cart: the quantity of an existing line
// grows by the record's units per scan, otherwise a new line is appended.
func (c *Cart) Merge(record types.ProductRecord) {
	code := strings.TrimSpace(record.Code)
	if code == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[code]; ok {
		c.lines[i].Quantity += record.UnitsPerScan()
		return
	}

	line := Line{
		Code:     code,
		Name:     record.DisplayName,
		Quantity: record.UnitsPerScan(),
	}
	if c.movementType == enums.MovementTypeEntry {
		line.MinQuantity = copyInt(record.MinQuantity)
	}
	c.index[code] = len(c.lines)
	c.lines = append(c.lines, line)
}

// SetQuantity overrides the quantity of an existing line. Zero removes it.
func (c *Cart) SetQuantity(code string, quantity int) error {
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be zero or greater")
	}
	code = strings.TrimSpace(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[code]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if quantity == 0 {
		c.removeAt(i)
		return nil
	}
	c.lines[i].Quantity = quantity
	return nil
}

func (c *Cart) Remove(code string) error {
	code = strings.TrimSpace(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[code]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	c.removeAt(i)
	return nil
}

// ReplaceAll swaps the whole cart for lines. Lines are validated first; on
// error the cart is left untouched.
func (c *Cart) ReplaceAll(lines []Line) error {
	next := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		line.Code = strings.TrimSpace(line.Code)
		if line.Code == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line code is required")
		}
		if line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line quantity must be at least 1").
				WithDetails(map[string]any{"code": line.Code})
		}
		if _, dup := index[line.Code]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate cart line").
				WithDetails(map[string]any{"code": line.Code})
		}
		if c.movementType == enums.MovementTypeEntry {
			line.MinQuantity = copyInt(line.MinQuantity)
		} else {
			line.MinQuantity = nil
		}
		index[line.Code] = len(next)
		next = append(next, line)
	}

	c.mu.Lock()
	c.lines = next
	c.index = index
	c.mu.Unlock()
	return nil
}

// Subtract takes lines out of the cart by code. A line whose quantity drops
// to zero or below is removed; codes not in the cart are ignored. Units
// merged after lines were read stay in the cart.
func (c *Cart) Subtract(lines []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for _, line := range lines {
		i, ok := c.index[strings.TrimSpace(line.Code)]
		if !ok {
			continue
		}
		c.lines[i].Quantity -= line.Quantity
		if c.lines[i].Quantity <= 0 {
			c.lines[i].Quantity = 0
			changed = true
		}
	}
	if !changed {
		return
	}
	kept := c.lines[:0]
	for _, line := range c.lines {
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	c.lines = kept
	c.index = make(map[string]int, len(c.lines))
	for j, line := range c.lines {
		c.index[line.Code] = j
	}
}

// Reset empties the cart.
func (c *Cart) Reset() {
	c.mu.Lock()
	c.lines = nil
	c.index = make(map[string]int)
	c.mu.Unlock()
}

// Lines returns a copy of the cart in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Line, len(c.lines))
	for i, line := range c.lines {
		line.MinQuantity = copyInt(line.MinQuantity)
		out[i] = line
	}
	return out
}

func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

func (c *Cart) TotalUnits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, line := range c.lines {
		total += line.Quantity
	}
	return total
}

// BelowMinimum lists entry lines whose quantity is under their minimum.
func (c *Cart) BelowMinimum() []Line {
	var out []Line
	for _, line := range c.Lines() {
		if line.MinQuantity != nil && line.Quantity < *line.MinQuantity {
			out = append(out, line)
		}
	}
	return out
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.index = make(map[string]int, len(c.lines))
	for j, line := range c.lines {
		c.index[line.Code] = j
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

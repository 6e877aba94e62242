package enums

// ExpiryStatus classifies how close a product is to its expiry date.
type ExpiryStatus string

const (
	ExpiryStatusOK       ExpiryStatus = "ok"
	ExpiryStatusExpiring ExpiryStatus = "expiring"
	ExpiryStatusExpired  ExpiryStatus = "expired"
)

// String implements fmt.Stringer.
func (e ExpiryStatus) String() string {
	return string(e)
}

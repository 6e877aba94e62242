package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExpiryMetrics exposes the last expiry report.
type ExpiryMetrics struct {
	products *prometheus.GaugeVec
}

func NewExpiryMetrics(reg prometheus.Registerer) *ExpiryMetrics {
	if reg == nil {
		return &ExpiryMetrics{}
	}
	products := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "products_expiry_window",
		Help: "Active products inside the expiry warning window, by status.",
	}, []string{"status"})
	reg.MustRegister(products)
	return &ExpiryMetrics{products: products}
}

func (m *ExpiryMetrics) SetCount(status string, n int) {
	if m == nil || m.products == nil {
		return
	}
	m.products.WithLabelValues(normalizeLabel(status)).Set(float64(n))
}

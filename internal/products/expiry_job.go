package products

import (
	"context"
	"fmt"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
)

const ExpiryReportJobName = "expiry_report"

// ExpiryReportJob periodically counts products inside the expiry warning
// window and publishes the totals as metrics.
type ExpiryReportJob struct {
	svc     *Service
	metrics *metrics.ExpiryMetrics
	logg    *logger.Logger
}

func NewExpiryReportJob(svc *Service, m *metrics.ExpiryMetrics, logg *logger.Logger) (*ExpiryReportJob, error) {
	if svc == nil {
		return nil, fmt.Errorf("product service required")
	}
	return &ExpiryReportJob{svc: svc, metrics: m, logg: logg}, nil
}

func (j *ExpiryReportJob) Name() string { return ExpiryReportJobName }

func (j *ExpiryReportJob) Run(ctx context.Context) error {
	items, err := j.svc.ListExpiring(ctx, 0)
	if err != nil {
		return err
	}
	counts := map[enums.ExpiryStatus]int{
		enums.ExpiryStatusExpired:  0,
		enums.ExpiryStatusExpiring: 0,
	}
	for _, item := range items {
		counts[item.Status]++
	}
	for status, n := range counts {
		j.metrics.SetCount(status.String(), n)
	}
	if j.logg != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"expired":  counts[enums.ExpiryStatusExpired],
			"expiring": counts[enums.ExpiryStatusExpiring],
		})
		j.logg.Info(logCtx, "expiry.report")
	}
	return nil
}

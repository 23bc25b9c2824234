package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storage-service/internal/metrics"
	"storage-service/internal/models"
)

// SweepService holds the periodic maintenance jobs.
type SweepService struct {
	allocations *CropAllocationService
	facilities  *FacilityService
	notifier    Notifier
	horizon     time.Duration
	metrics     *metrics.Metrics
}

func NewSweepService(
	allocations *CropAllocationService,
	facilities *FacilityService,
	notifier Notifier,
	horizon time.Duration,
	m *metrics.Metrics,
) *SweepService {
	return &SweepService{
		allocations: allocations,
		facilities:  facilities,
		notifier:    orNoopNotifier(notifier),
		horizon:     horizon,
		metrics:     m,
	}
}

// ExpirySweep warns farmers whose harvested batches expire within the horizon.
func (s *SweepService) ExpirySweep(ctx context.Context) error {
	expiring, err := s.allocations.ExpiringSoon(ctx, s.horizon)
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}
	s.metrics.ExpiringBatches(len(expiring))

	for _, allocation := range expiring {
		if err := ctx.Err(); err != nil {
			return err
		}
		expiresAt := time.Unix(deref(allocation.ExpiryDate), 0)
		notification := models.Notification{
			UserIDs: []string{allocation.FarmerID.String()},
			Title:   "Harvest expiring soon",
			Body: fmt.Sprintf("Your %s harvest of %.0f kg expires on %s.",
				allocation.CropName, deref(allocation.HarvestQuantity), expiresAt.Format("2006-01-02")),
			Data: map[string]any{
				"type":          "crop_expiry",
				"allocation_id": allocation.ID.String(),
			},
		}
		if err := s.notifier.Notify(ctx, notification); err != nil {
			slog.Error("failed to send expiry notification", "allocation_id", allocation.ID, "error", err)
		}
	}

	slog.Info("expiry sweep completed", "expiring", len(expiring))
	return nil
}

// SpaceAuditSweep audits every facility's space counter.
func (s *SweepService) SpaceAuditSweep(ctx context.Context) error {
	audits, err := s.facilities.AuditAll(ctx)
	if err != nil {
		return fmt.Errorf("space audit sweep: %w", err)
	}

	drifted := 0
	for _, audit := range audits {
		if !audit.Consistent() {
			drifted++
		}
	}
	slog.Info("space audit sweep completed", "facilities", len(audits), "drifted", drifted)
	return nil
}

package analytics

import (
	"context"

	"github.com/richxcame/ridedemand/internal/dataset"
	"github.com/richxcame/ridedemand/pkg/logger"
	"go.uber.org/zap"
)

// Service serves the aggregation views over the loaded history
type Service struct {
	ds *dataset.Dataset
}

// NewService creates a new analytics service
func NewService(ds *dataset.Dataset) *Service {
	return &Service{ds: ds}
}

func (s *Service) records() []dataset.HistoricalRecord {
	if s.ds == nil {
		return nil
	}
	return s.ds.Records
}

// GetTimeSeries returns the demand timeline, or daily totals when daily is set
func (s *Service) GetTimeSeries(ctx context.Context, daily bool) ([]TimePoint, error) {
	var (
		points []TimePoint
		err    error
	)
	if daily {
		points, err = DailyTotals(s.records())
	} else {
		points, err = TimeSeries(s.records())
	}
	return points, s.logFailure(ctx, ViewTimeSeries, err)
}

// GetHourly returns the average demand by hour
func (s *Service) GetHourly(ctx context.Context) ([]Bucket, error) {
	buckets, err := Hourly(s.records())
	return buckets, s.logFailure(ctx, ViewHourly, err)
}

// GetWeekly returns the average demand by day of week
func (s *Service) GetWeekly(ctx context.Context) ([]Bucket, error) {
	buckets, err := Weekly(s.records())
	return buckets, s.logFailure(ctx, ViewWeekly, err)
}

// GetHeatmap returns the day by hour demand grid
func (s *Service) GetHeatmap(ctx context.Context) (*Heatmap, error) {
	hm, err := BuildHeatmap(s.records())
	return hm, s.logFailure(ctx, ViewHeatmap, err)
}

// GetSummary returns the headline figures
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	summary, err := BuildSummary(s.records())
	return summary, s.logFailure(ctx, ViewSummary, err)
}

func (s *Service) logFailure(ctx context.Context, view string, err error) error {
	if err != nil {
		logger.WithContext(ctx).Warn("View unavailable", zap.String("view", view), zap.Error(err))
	}
	return err
}

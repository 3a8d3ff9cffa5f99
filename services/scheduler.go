package services

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ScheduleRollupRefresh registers the analytics rollup refresh on the
// shared scheduler; the interval is the documented staleness bound for
// the rollup read path.
func (s *AnalyticsService) ScheduleRollupRefresh(sched gocron.Scheduler, interval time.Duration) error {
	_, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := s.RefreshRollups(ctx); err != nil {
				log.Printf("[Scheduler] Rollup refresh failed: %v", err)
				return
			}
			log.Println("✅ Analytics rollups refreshed")
		}),
	)
	return err
}

// ScheduleGeoRefresh registers the periodic geo database reload. A
// failed fetch keeps the previous table; lookups never stop working
// because a refresh misfired.
func ScheduleGeoRefresh(sched gocron.Scheduler, geo *GeoResolver, fetch func(context.Context) (io.ReadCloser, error), interval time.Duration) error {
	_, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			body, err := fetch(ctx)
			if err != nil {
				log.Printf("[Scheduler] Geo database fetch failed: %v", err)
				return
			}
			defer body.Close()
			if err := geo.LoadCSV(body); err != nil {
				log.Printf("[Scheduler] Geo database reload failed: %v", err)
			}
		}),
	)
	return err
}

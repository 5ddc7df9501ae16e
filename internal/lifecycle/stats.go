package lifecycle

import (
	"context"
	"time"

	"github.com/ecanizalez/orgreq/internal/cache"
	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
)

const (
	statsCacheKey = "invitations"

	// Trailing window of the monthly series, current month included.
	monthlyWindow = 6
)

// MonthlyCount is one month of the request-volume series.
type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int64  `json:"count"`
}

// Statistics is the reviewer dashboard aggregate.
type Statistics struct {
	Total            int64                       `json:"total"`
	ByStatus         map[models.StatusName]int64 `json:"by_status"`
	Monthly          []MonthlyCount              `json:"monthly"`
	AvgDecisionHours float64                     `json:"avg_decision_hours"`
}

// Statistics computes the aggregate counts, cached briefly and dropped
// on every committed state change.
func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	if v, ok := e.cache.Get(cache.StatsKey(statsCacheKey)); ok {
		if stats, ok := v.(*Statistics); ok {
			return stats, nil
		}
	}

	db := &gormw.DB{DB: e.db.WithContext(ctx)}

	counts, err := storage.CountInvitationsByStatus(db)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		ByStatus: make(map[models.StatusName]int64, len(models.AllStatuses())),
	}
	for _, name := range models.AllStatuses() {
		n := counts[e.statuses.MustResolve(name)]
		stats.ByStatus[name] = n
		stats.Total += n
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).
		AddDate(0, -(monthlyWindow - 1), 0)
	created, err := storage.ListInvitationCreationTimes(db, start)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]int64, monthlyWindow)
	for _, ts := range created {
		buckets[ts.Format("2006-01")]++
	}
	stats.Monthly = make([]MonthlyCount, 0, monthlyWindow)
	for i := 0; i < monthlyWindow; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		stats.Monthly = append(stats.Monthly, MonthlyCount{Month: month, Count: buckets[month]})
	}

	durations, err := storage.DecisionDurations(db)
	if err != nil {
		return nil, err
	}
	if len(durations) > 0 {
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		avg := sum / time.Duration(len(durations))
		stats.AvgDecisionHours = avg.Hours()
	}

	e.cache.Set(cache.StatsKey(statsCacheKey), stats, cache.TTLShort)
	return stats, nil
}

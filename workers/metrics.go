package workers

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"stagebased/errors"
	"stagebased/models"

	"golang.org/x/sync/errgroup"
)

/************************************************
/**** MARK: METRIC NAMES ****/
/************************************************/
const METRIC_ACTIVE_LAST = "subscriptions.active.last"
const METRIC_CREATED_LAST = "subscriptions.created.last"
const METRIC_BROKEN_LAST = "subscriptions.broken.last"
const METRIC_COMPLETED_LAST = "subscriptions.completed.last"

func MessageSetActiveMetric(shortName string) string {
	return "subscriptions." + shortName + ".active.last"
}

// AvailableMetrics lists every metric the service can emit: realtime
// counters, scheduled gauges, then one gauge per MessageSet.
func (e *Engine) AvailableMetrics() ([]string, error) {
	names := []string{
		models.METRIC_CREATED_SUM,
		models.METRIC_SEND_ERRORED_SUM,
		METRIC_ACTIVE_LAST,
		METRIC_CREATED_LAST,
		METRIC_BROKEN_LAST,
		METRIC_COMPLETED_LAST,
	}
	var sets []models.MessageSet
	if err := e.db.Order("id asc").Find(&sets).Error; err != nil {
		return nil, errors.Wrap(err, "list messagesets")
	}
	for _, set := range sets {
		set := set
		names = append(names, MessageSetActiveMetric(set.ShortName))
	}
	return names, nil
}

// FireMetric pushes one value to the metrics collaborator.
func (e *Engine) FireMetric(ctx context.Context, name string, value float64) (string, error) {
	if err := e.metrics.FireMetric(ctx, name, value); err != nil {
		return "", e.collaborator("metrics", err)
	}
	return fmt.Sprintf("Fired metric <%s> with value <%s>", name, formatValue(value)), nil
}

func (e *Engine) fireCount(ctx context.Context, name string, where string, args ...any) (string, error) {
	var count int
	q := e.db.Model(&models.Subscription{})
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&count).Error; err != nil {
		return "", errors.Wrapf(err, "count for %s", name)
	}
	return e.FireMetric(ctx, name, float64(count))
}

func (e *Engine) FireActiveLast(ctx context.Context) (string, error) {
	return e.fireCount(ctx, METRIC_ACTIVE_LAST, "active = ?", true)
}

func (e *Engine) FireCreatedLast(ctx context.Context) (string, error) {
	return e.fireCount(ctx, METRIC_CREATED_LAST, "")
}

func (e *Engine) FireBrokenLast(ctx context.Context) (string, error) {
	return e.fireCount(ctx, METRIC_BROKEN_LAST, "process_status = ?", models.PROCESS_STATUS_BROKEN)
}

func (e *Engine) FireCompletedLast(ctx context.Context) (string, error) {
	return e.fireCount(ctx, METRIC_COMPLETED_LAST, "completed = ?", true)
}

func (e *Engine) FireMessageSetLast(ctx context.Context, messageSetID int64, shortName string) (string, error) {
	return e.fireCount(ctx, MessageSetActiveMetric(shortName), "active = ? AND messageset_id = ?", true, messageSetID)
}

// FireMessageSetsTasks fires the active gauge of every MessageSet.
func (e *Engine) FireMessageSetsTasks(ctx context.Context) (string, error) {
	var sets []models.MessageSet
	if err := e.db.Order("id asc").Find(&sets).Error; err != nil {
		return "", errors.Wrap(err, "list messagesets")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, set := range sets {
		set := set
		g.Go(func() error {
			_, err := e.FireMessageSetLast(gctx, set.ID, set.ShortName)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d MessageSet metrics launched", len(sets)), nil
}

// ScheduledMetrics is the periodic sweep: the four subscription gauges and
// the per-MessageSet gauges, launched concurrently.
func (e *Engine) ScheduledMetrics(ctx context.Context) (string, error) {
	tasks := []func(context.Context) (string, error){
		e.FireActiveLast,
		e.FireCreatedLast,
		e.FireBrokenLast,
		e.FireCompletedLast,
		e.FireMessageSetsTasks,
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			_, err := task(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d Scheduled metrics launched", len(tasks)), nil
}

// integral values keep one decimal: 2 -> "2.0"
func formatValue(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

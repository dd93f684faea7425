package workers

import (
	"context"
	"strings"

	"stagebased/config"
	"stagebased/errors"
	"stagebased/models"
	"stagebased/tools"

	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Deps are the collaborators an Engine works with. Registerer may be nil.
type Deps struct {
	DB         *gorm.DB
	Identity   tools.IdentityStore
	Sender     tools.MessageSender
	Scheduler  tools.Scheduler
	Metrics    tools.MetricsPublisher
	Queue      *Queue
	Config     config.Configuration
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
}

// Engine runs dispatch, schedule sync and metrics tasks against one database
// and one set of collaborators.
type Engine struct {
	db        *gorm.DB
	identity  tools.IdentityStore
	sender    tools.MessageSender
	scheduler tools.Scheduler
	metrics   tools.MetricsPublisher
	queue     *Queue
	conf      config.Configuration
	log       zerolog.Logger
	inst      *Instruments
}

func NewEngine(d Deps) *Engine {
	q := d.Queue
	if q == nil {
		q = NewQueue(config.WorkersConfig{Eager: true}, d.Logger)
	}
	inst := MustNewInstruments(d.Registerer)
	q.onDone = inst.task
	return &Engine{
		db:        d.DB,
		identity:  d.Identity,
		sender:    d.Sender,
		scheduler: d.Scheduler,
		metrics:   d.Metrics,
		queue:     q,
		conf:      d.Config,
		log:       d.Logger.With().Str("component", "engine").Logger(),
		inst:      inst,
	}
}

// NewEngineFromConfig wires the HTTP collaborator clients described by conf.
func NewEngineFromConfig(conf config.Configuration, database *gorm.DB, q *Queue, log zerolog.Logger, reg prometheus.Registerer) *Engine {
	return NewEngine(Deps{
		DB:         database,
		Identity:   tools.NewIdentityClient(tools.NewClient("identity_store", conf.IdentityStore)),
		Sender:     tools.NewMessageSenderClient(tools.NewClient("message_sender", conf.MessageSender)),
		Scheduler:  tools.NewSchedulerClient(tools.NewClient("scheduler", conf.Scheduler)),
		Metrics:    tools.NewMetricsClient(tools.NewClient("metrics", conf.Metrics)),
		Queue:      q,
		Config:     conf,
		Logger:     log,
		Registerer: reg,
	})
}

func (e *Engine) DB() *gorm.DB { return e.db }

func (e *Engine) Queue() *Queue { return e.queue }

func (e *Engine) Config() config.Configuration { return e.conf }

func (e *Engine) Logger() *zerolog.Logger { return &e.log }

// Apply queues the tasks for effects returned by a persisted transition.
// A failure here never undoes the transition.
func (e *Engine) Apply(ctx context.Context, effects []models.Effect) error {
	var combined error
	for _, eff := range effects {
		var err error
		switch eff.Kind {
		case models.EffectScheduleCreate:
			err = e.EnqueueScheduleCreate(ctx, eff.SubscriptionID)
		case models.EffectScheduleDisable:
			err = e.EnqueueScheduleDisable(ctx, eff.SubscriptionID)
		case models.EffectIncrementMetric:
			err = e.EnqueueFireMetric(ctx, eff.Metric, 1.0)
		default:
			err = errors.Newf("unknown effect %d", eff.Kind)
		}
		if err != nil {
			e.log.Error().Err(err).Str("effect", eff.Kind.String()).Str("subscription_id", eff.SubscriptionID).
				Msg("effect failed")
			combined = errors.CombineErrors(combined, err)
		}
	}
	return combined
}

/************************************************
/**** MARK: ENQUEUE ****/
/************************************************/

func (e *Engine) EnqueueSendNextMessage(ctx context.Context, subscriptionID string) error {
	return e.queue.Enqueue(ctx, Task{
		Name: TASK_SEND_NEXT_MESSAGE,
		Key:  subscriptionID,
		Run: func(ctx context.Context) error {
			_, err := e.AdvanceOne(ctx, subscriptionID)
			// the subscription is broken or released by now; a rerun would be a no-op
			return NoRetry(err)
		},
	})
}

func (e *Engine) EnqueueScheduleCreate(ctx context.Context, subscriptionID string) error {
	return e.queue.Enqueue(ctx, Task{
		Name: TASK_SCHEDULE_CREATE,
		Key:  subscriptionID,
		Run: func(ctx context.Context) error {
			_, err := e.ScheduleCreate(ctx, subscriptionID)
			return err
		},
	})
}

func (e *Engine) EnqueueScheduleDisable(ctx context.Context, subscriptionID string) error {
	return e.queue.Enqueue(ctx, Task{
		Name: TASK_SCHEDULE_DISABLE,
		Key:  subscriptionID,
		Run: func(ctx context.Context) error {
			_, err := e.ScheduleDisable(ctx, subscriptionID)
			return err
		},
	})
}

// EnqueueFireMetric is best-effort: in eager mode a failed push is logged
// and swallowed so the caller's mutation is never affected.
func (e *Engine) EnqueueFireMetric(ctx context.Context, name string, value float64) error {
	err := e.queue.Enqueue(ctx, Task{
		Name: TASK_FIRE_METRIC,
		Key:  name,
		Run: func(ctx context.Context) error {
			_, err := e.FireMetric(ctx, name, value)
			return err
		},
	})
	if err != nil && e.queue.Eager() {
		return nil
	}
	return err
}

func (e *Engine) EnqueueScheduledMetrics(ctx context.Context) error {
	return e.queue.Enqueue(ctx, Task{
		Name: TASK_SCHEDULED_METRICS,
		Run: func(ctx context.Context) error {
			_, err := e.ScheduledMetrics(ctx)
			return err
		},
	})
}

/************************************************
/**** MARK: HELPERS ****/
/************************************************/

// collaborator counts a failed remote call and tags it with the service name.
func (e *Engine) collaborator(service string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tools.APIError
	if errors.As(err, &apiErr) && apiErr.Service != "" {
		service = apiErr.Service
	}
	if errors.Is(err, errors.ErrCollaborator) {
		e.inst.collaboratorError(service)
	}
	return errors.Wrapf(err, "%s", service)
}

// callbackURL is the dispatch endpoint the remote scheduler calls.
func (e *Engine) callbackURL(subscriptionID string) string {
	path := "subscriptions/" + subscriptionID + "/send"
	if base := strings.TrimSpace(e.conf.PublicURL); base != "" {
		return strings.TrimRight(base, "/") + "/" + path
	}
	return tools.MakeAbsoluteURL(e.conf.PublicDomain, e.conf.UseSSL, "/api/v1/"+path)
}

func (e *Engine) loadSubscription(db *gorm.DB, id string) (models.Subscription, error) {
	var sub models.Subscription
	if err := db.Where("id = ?", id).First(&sub).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return sub, errors.Mark(errors.Newf("subscription %s not found", id), errors.ErrNotFound)
		}
		return sub, errors.Wrapf(err, "load subscription %s", id)
	}
	return sub, nil
}

package store

import (
	"context"
	"time"

	appLog "meetcal/internal/log"
	"meetcal/internal/metrics"
	"meetcal/internal/model"
)

// Instrumented wraps a MeetingStore with metrics and mutation logging.
type Instrumented struct {
	next    MeetingStore
	metrics *metrics.Metrics
	log     *appLog.Logger
}

// Instrument decorates s. m may be nil.
func Instrument(s MeetingStore, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: s, metrics: m, log: appLog.Component("store")}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	i.metrics.ObserveStore(op, result, time.Since(start).Seconds())
}

func (i *Instrumented) ListByRange(ctx context.Context, q RangeQuery) (ListResult, error) {
	start := time.Now()
	res, err := i.next.ListByRange(ctx, q)
	i.observe("list", start, err)
	return res, err
}

func (i *Instrumented) Get(ctx context.Context, id string) (model.Meeting, error) {
	start := time.Now()
	m, err := i.next.Get(ctx, id)
	i.observe("get", start, err)
	return m, err
}

func (i *Instrumented) Create(ctx context.Context, d model.Draft) (model.Meeting, error) {
	start := time.Now()
	m, err := i.next.Create(ctx, d)
	i.observe("create", start, err)
	if err != nil {
		i.log.Warn("create rejected", "title", d.Title, "err", err)
		return m, err
	}
	i.log.Info("meeting created", "id", m.ID, "version", m.Version)
	return m, nil
}

func (i *Instrumented) Update(ctx context.Context, id string, p model.Patch) (model.Meeting, error) {
	start := time.Now()
	m, err := i.next.Update(ctx, id, p)
	i.observe("update", start, err)
	if err != nil {
		i.log.Warn("update rejected", "id", id, "err", err)
		return m, err
	}
	i.log.Info("meeting updated", "id", m.ID, "version", m.Version)
	return m, nil
}

func (i *Instrumented) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	start := time.Now()
	err := i.next.Delete(ctx, id, opts)
	i.observe("delete", start, err)
	if err != nil {
		i.log.Warn("delete rejected", "id", id, "err", err)
		return err
	}
	i.log.Info("meeting deleted", "id", id)
	return nil
}

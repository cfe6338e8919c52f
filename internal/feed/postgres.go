package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/metrics"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

// NotifyChannel is the Postgres channel the resumes trigger notifies on.
const NotifyChannel = "resume_changes"

// RowFetcher loads the current resumes row for a notification.
type RowFetcher interface {
	GetByID(ctx context.Context, id string, joined bool) (*models.Resume, error)
}

// notifyListener is the part of *pq.Listener the bridge uses.
type notifyListener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// PGBridge republishes row changes announced by the resumes trigger.
// It sees writes made by anyone, including deletes done outside the service.
type PGBridge struct {
	listener notifyListener
	rows     RowFetcher
	pub      Publisher
	log      *logrus.Entry
	ping     time.Duration

	retryMin time.Duration
	retryMax time.Duration
}

func NewPGBridge(dsn string, rows RowFetcher, pub Publisher, log *logrus.Entry) *PGBridge {
	onEvent := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			log.WithError(err).Warn("postgres listener connection lost")
		case pq.ListenerEventReconnected:
			log.Info("postgres listener reconnected")
		}
	}
	return &PGBridge{
		listener: pq.NewListener(dsn, 10*time.Second, time.Minute, onEvent),
		rows:     rows,
		pub:      pub,
		log:      log,
		ping:     90 * time.Second,
		retryMin: time.Second,
		retryMax: time.Minute,
	}
}

// Run blocks until ctx is done. A failing LISTEN is retried with backoff.
func (b *PGBridge) Run(ctx context.Context) error {
	defer b.listener.Close()
	if err := b.listen(ctx); err != nil {
		return nil
	}

	notify := b.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notify:
			if !ok {
				return errors.New("postgres listener closed")
			}
			// nil after a reconnect; rows changed while disconnected are not replayed
			if n == nil {
				continue
			}
			b.handle(ctx, []byte(n.Extra))
		case <-time.After(b.ping):
			go func() { _ = b.listener.Ping() }()
		}
	}
}

// listen returns nil once LISTEN succeeded, or ctx.Err() if ctx ends first.
func (b *PGBridge) listen(ctx context.Context) error {
	delay := b.retryMin
	for {
		err := b.listener.Listen(NotifyChannel)
		if err == nil || errors.Is(err, pq.ErrChannelAlreadyOpen) {
			return nil
		}
		b.log.WithError(err).WithField("retry_in", delay.String()).Warn("listen on change channel")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.retryMax {
			delay = b.retryMax
		}
	}
}

func (b *PGBridge) handle(ctx context.Context, payload []byte) {
	n, err := decodeNotification(payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping malformed notification")
		return
	}
	c, ok := b.changeFor(ctx, n)
	if !ok {
		return
	}
	metrics.FeedEvents.WithLabelValues(string(c.Type), "postgres").Inc()
	if err := b.pub.Publish(ctx, c); err != nil {
		b.log.WithError(err).WithField("id", c.RecordID()).Error("republish change")
	}
}

// changeFor turns a notification into a change. Inserts and updates are
// re-read so the payload never has to hold the row itself.
func (b *PGBridge) changeFor(ctx context.Context, n pgNotification) (Change, bool) {
	if n.Op == "DELETE" {
		return Deleted(n.ID, n.UserID), true
	}

	row, err := b.rows.GetByID(ctx, n.ID, false)
	if err == nil && row != nil {
		if n.Op == "INSERT" {
			return Inserted(*row), true
		}
		return Updated(*row), true
	}

	log := b.log.WithError(err).WithField("id", n.ID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		// removed before we got to it; the delete notification follows
		log.Debug("changed row already gone")
		return Change{}, false
	case n.Op == "UPDATE":
		// views re-fetch on update, so the bare key is enough for them
		log.Warn("re-read updated row; publishing key only")
		return UpdatedFields(models.Resume{ID: n.ID, UserID: n.UserID}, "id", "user_id"), true
	default:
		log.Warn("re-read inserted row; dropping")
		return Change{}, false
	}
}

// pgNotification is the payload built by the notify_resume_change trigger.
type pgNotification struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func decodeNotification(b []byte) (pgNotification, error) {
	var n pgNotification
	if err := json.Unmarshal(b, &n); err != nil {
		return pgNotification{}, err
	}
	switch n.Op {
	case "INSERT", "UPDATE", "DELETE":
	default:
		return pgNotification{}, fmt.Errorf("unknown op %q", n.Op)
	}
	if n.ID == "" {
		return pgNotification{}, fmt.Errorf("%s without id", n.Op)
	}
	return n, nil
}

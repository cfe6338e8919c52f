package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/metrics"
)

const (
	ChannelAll         = "resumes:changes"
	ownerChannelPrefix = "resumes:changes:user:"
)

func OwnerChannel(ownerID string) string { return ownerChannelPrefix + ownerID }

func channelFor(s Scope) string {
	if s.All() {
		return ChannelAll
	}
	return OwnerChannel(s.OwnerID)
}

// RedisFeed carries changes over Redis pub/sub.
type RedisFeed struct {
	rdb *redis.Client
	log *logrus.Entry
	buf int
}

func NewRedisFeed(rdb *redis.Client, log *logrus.Entry) *RedisFeed {
	return &RedisFeed{rdb: rdb, log: log, buf: 64}
}

// Publish writes the change to the global channel and to the owner's channel.
func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, ChannelAll, b).Err(); err != nil {
		return err
	}
	if owner := c.OwnerID(); owner != "" {
		if err := f.rdb.Publish(ctx, OwnerChannel(owner), b).Err(); err != nil {
			return err
		}
	}
	metrics.FeedEvents.WithLabelValues(string(c.Type), "published").Inc()
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, scope Scope) (Subscription, error) {
	ps := f.rdb.Subscribe(ctx, channelFor(scope))
	// wait for the subscribe confirmation so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &redisSubscription{
		ps:      ps,
		scope:   scope,
		log:     f.log,
		events:  make(chan Change, f.buf),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.pump(ps.Channel())
	return s, nil
}

type redisSubscription struct {
	ps    *redis.PubSub
	scope Scope
	log   *logrus.Entry

	events  chan Change
	done    chan struct{}
	stopped chan struct{}

	once     sync.Once
	closeErr error
}

func (s *redisSubscription) Events() <-chan Change { return s.events }

func (s *redisSubscription) pump(in <-chan *redis.Message) {
	defer close(s.stopped)
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			c, err := Decode([]byte(m.Payload))
			if err != nil {
				s.log.WithError(err).WithField("channel", m.Channel).Warn("dropping malformed change")
				continue
			}
			if !s.scope.Matches(c) {
				continue
			}
			metrics.FeedEvents.WithLabelValues(string(c.Type), "received").Inc()
			select {
			case s.events <- c:
			case <-s.done:
				return
			}
		}
	}
}

// Close is idempotent and returns after the pump goroutine has exited.
func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.closeErr = s.ps.Close()
	})
	<-s.stopped
	return s.closeErr
}

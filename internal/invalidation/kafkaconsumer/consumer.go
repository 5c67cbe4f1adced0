// Package kafkaconsumer runs an optional Kafka consumer-group loop that
// invalidates region cache slots named on a "region.invalidate" topic,
// grounded on the teacher's pkg/invalidation/kafka/runner.go consumer-group
// loop, repurposed from deleting H3 cell keys to resetting
// regioncache.Key entries by (resource, column).
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/core/config"
	"github.com/geoindex/regioncache/internal/core/observability"
	"github.com/geoindex/regioncache/internal/regioncache"
)

// Resetter is the subset of RegionCache this consumer needs: anything that
// can drop a single key. SpatialRegionCache and HashMapRegionCache both
// satisfy it via their embedded *regioncache.RegionCache[I].
type Resetter interface {
	Reset(key regioncache.Key)
}

// InvalidateMessage is the wire format on the invalidation topic.
type InvalidateMessage struct {
	Resource string `json:"resource"`
	Column   string `json:"column"`
}

// Runner consumes InvalidateMessage records and resets the matching key on
// every target cache (a message doesn't say which cache kind the column
// belongs to, so every registered target is tried).
type Runner struct {
	log      *zerolog.Logger
	cfg      config.InvalidationCfg
	targets  []Resetter
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// New constructs a Runner. targets are consulted in order for every
// invalidation message.
func New(cfg config.InvalidationCfg, log *zerolog.Logger, targets ...Resetter) *Runner {
	return &Runner{cfg: cfg, log: log, targets: targets, assign: map[int32]struct{}{}}
}

// Start launches the consumer-group loop in the background. A no-op if
// invalidation is disabled in config.
func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		if r.log != nil {
			r.log.Info().Msg("kafkaconsumer: invalidation disabled")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_5_0_0
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup([]string{r.cfg.Brokers}, r.cfg.GroupID, saramaCfg)
	if err != nil {
		return fmt.Errorf("kafkaconsumer: new consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if cerr := group.Close(); cerr != nil && r.log != nil {
				r.log.Error().Err(cerr).Msg("kafkaconsumer: consumer group close")
			}
		}()
		for {
			if cerr := group.Consume(ctx, []string{r.cfg.Topic}, h); cerr != nil {
				if r.log != nil {
					r.log.Error().Err(cerr).Msg("kafkaconsumer: consume error")
				}
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			if r.log != nil {
				r.log.Error().Err(err).Msg("kafkaconsumer: consumer group error")
			}
		}
	}()

	if r.log != nil {
		r.log.Info().Str("topic", r.cfg.Topic).Str("group", r.cfg.GroupID).Msg("kafkaconsumer: started")
	}
	return nil
}

// Stop cancels the consumer loop and waits for it to drain.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Readiness reports whether this consumer currently holds a partition
// assignment, satisfying internal/core/health.ReadinessReporter.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (r *Runner) handleMessage(_ context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var m InvalidateMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		observability.IncRegionCacheEviction("unknown", "invalidate_decode_error")
		return fmt.Errorf("kafkaconsumer: decode: %w", err)
	}
	if m.Resource == "" || m.Column == "" {
		return errors.New("kafkaconsumer: message missing resource or column")
	}

	key := regioncache.NewKey(m.Resource, m.Column, nil)
	for _, t := range r.targets {
		t.Reset(key)
	}

	if r.log != nil {
		r.log.Debug().Str("key", key.String()).Dur("took", time.Since(start)).Msg("kafkaconsumer: invalidated")
	}
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

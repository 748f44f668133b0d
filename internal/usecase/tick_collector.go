package usecase

import (
	"context"
	"sync"

	"OptionsOracle/internal/domain/models"
	drepo "OptionsOracle/internal/domain/repository"
	mid "OptionsOracle/internal/middleware"
	"OptionsOracle/pkg/logger"
)

// TickCollector pulls ticks from the live stream and feeds them through
// the realtime pipeline into the router. A failed stream is reconnected
// until the context ends.
type TickCollector struct {
	stream  drepo.TickStream
	router  *TickRouter
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *logger.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewTickCollector(stream drepo.TickStream, router *TickRouter, pipe *mid.RealtimePipeline, metrics drepo.Metrics, log *logger.Logger) *TickCollector {
	if log == nil {
		log = logger.Nop()
	}
	return &TickCollector{stream: stream, router: router, pipe: pipe, metrics: metrics, log: log.Component("tick-collector")}
}

func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and starts consuming in the background.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *TickCollector) run(ctx context.Context) {
	for {
		ticks, errs := c.stream.Read(ctx)
		c.consume(ctx, ticks)
		if ctx.Err() != nil {
			return
		}
		if err := <-errs; err != nil {
			c.metrics.RecordError("stream")
			c.log.Warn("tick stream failed, reconnecting", logger.Error(err))
		}
		for {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.log.Info("tick stream reconnected")
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.log.Warn("reconnect failed", logger.Error(err))
		}
	}
}

func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick) {
	for t := range ticks {
		if t == nil {
			continue
		}
		if c.pipe != nil {
			if err := c.pipe.Process(ctx, t); err != nil {
				c.log.Debug("tick not applied", logger.String("token", t.Token), logger.Error(err))
			}
			continue
		}
		_ = c.router.OnTick(ctx, t)
	}
}

// Shutdown closes the stream and waits for the consumer.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

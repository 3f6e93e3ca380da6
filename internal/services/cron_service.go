package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// OrderExpirer is the part of the order service the sweeper drives.
type OrderExpirer interface {
	ExpireStaleOrders(ctx context.Context, before time.Time, batch int) (int, error)
}

// IdleEvictor drops in-memory per-customer state unused since a cutoff.
type IdleEvictor interface {
	EvictIdle(before time.Time) int
}

// CronService periodically cancels gateway orders whose payment never arrived.
type CronService struct {
	orders   OrderExpirer
	interval time.Duration
	ttl      time.Duration
	batch    int
	now      func() time.Time

	idleTTL  time.Duration
	evictors []IdleEvictor

	ticker   *time.Ticker
	stopChan chan struct{}
	done     sync.WaitGroup
}

func NewCronService(orders OrderExpirer, interval, ttl time.Duration) *CronService {
	return &CronService{
		orders:   orders,
		interval: interval,
		ttl:      ttl,
		batch:    100,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// WatchIdle registers per-customer caches to trim on every tick.
func (s *CronService) WatchIdle(ttl time.Duration, evictors ...IdleEvictor) {
	s.idleTTL = ttl
	s.evictors = append(s.evictors, evictors...)
}

func (s *CronService) Start() error {
	s.ticker = time.NewTicker(s.interval)

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		for {
			select {
			case <-s.ticker.C:
				s.SweepOnce(context.Background())
				s.EvictOnce()
			case <-s.stopChan:
				return
			}
		}
	}()

	log.Printf("Cron service started - expiring unpaid gateway orders older than %s", s.ttl)
	return nil
}

func (s *CronService) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopChan)
	s.done.Wait()
	log.Println("Cron service stopped")
}

// SweepOnce expires batches until a short batch signals the backlog is drained.
func (s *CronService) SweepOnce(ctx context.Context) int {
	cutoff := s.now().Add(-s.ttl)
	total := 0
	for {
		n, err := s.orders.ExpireStaleOrders(ctx, cutoff, s.batch)
		total += n
		if err != nil {
			log.Printf("Order sweep failed: %v", err)
			break
		}
		if n < s.batch {
			break
		}
	}
	if total > 0 {
		log.Printf("Expired %d unpaid gateway orders created before %s", total, cutoff.Format(time.RFC3339))
	}
	return total
}

// EvictOnce trims every registered cache and returns the number of entries dropped.
func (s *CronService) EvictOnce() int {
	if len(s.evictors) == 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)
	total := 0
	for _, e := range s.evictors {
		total += e.EvictIdle(cutoff)
	}
	if total > 0 {
		log.Printf("Evicted %d idle cart and checkout entries", total)
	}
	return total
}

package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"newslingo/internal/cache"
	"newslingo/internal/ingest"
	"newslingo/internal/models"
	"newslingo/internal/storage"
)

// Runner abstracts the ingest coordinator for testing.
type Runner interface {
	FetchAll(ctx context.Context, skipTranslation bool) (*models.RunResult, error)
	InProgress() bool
}

// Poller schedules periodic fetch runs and an hourly maintenance sweep.
// Both jobs can be toggled at runtime without stopping the loops.
type Poller struct {
	runner       Runner
	storage      storage.Storage
	cacheManager *cache.Manager

	fetchInterval   time.Duration
	cleanupInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu                 sync.RWMutex
	isRunning          bool
	fetchEnabled       bool
	translationEnabled bool
	lastFetchTime      *time.Time
	lastFetchResult    *models.RunResult
	nextFetch          *time.Time
	nextCleanup        *time.Time
}

func New(runner Runner, store storage.Storage, cacheManager *cache.Manager, fetchInterval, cleanupInterval time.Duration) *Poller {
	return &Poller{
		runner:             runner,
		storage:            store,
		cacheManager:       cacheManager,
		fetchInterval:      fetchInterval,
		cleanupInterval:    cleanupInterval,
		fetchEnabled:       true,
		translationEnabled: true,
	}
}

func (p *Poller) Start() {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	// A fresh context per start: the previous one stays canceled after
	// Stop, and restarted loops must not inherit it.
	p.ctx, p.cancel = context.WithCancel(context.Background())
	ctx := p.ctx
	p.mu.Unlock()

	log.Printf("Starting scheduler (fetch every %v, maintenance every %v)", p.fetchInterval, p.cleanupInterval)

	p.wg.Add(2)
	go p.fetchLoop(ctx)
	go p.cleanupLoop(ctx)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.mu.Unlock()

	log.Println("Stopping scheduler...")
	p.cancel()
	p.wg.Wait()
	log.Println("Scheduler stopped")
}

func (p *Poller) fetchLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.fetchInterval)
	defer ticker.Stop()

	// Fetch immediately on start.
	p.runFetch(ctx)

	for {
		p.setNextFetch(time.Now().Add(p.fetchInterval))
		select {
		case <-ticker.C:
			p.runFetch(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		p.setNextCleanup(time.Now().Add(p.cleanupInterval))
		select {
		case <-ticker.C:
			p.runCleanup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) runFetch(ctx context.Context) {
	p.mu.RLock()
	enabled := p.fetchEnabled
	translate := p.translationEnabled
	p.mu.RUnlock()

	if !enabled {
		log.Println("Scheduled fetch skipped: fetching disabled")
		return
	}

	result, err := p.runner.FetchAll(ctx, !translate)
	if err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			log.Println("Scheduled fetch skipped: a run is already in progress")
		} else if ctx.Err() == nil {
			log.Printf("Scheduled fetch failed: %v", err)
		}
		return
	}

	now := time.Now()
	p.mu.Lock()
	p.lastFetchTime = &now
	p.lastFetchResult = result
	p.mu.Unlock()

	if result.NewArticles > 0 && p.cacheManager != nil {
		p.cacheManager.Flush()
	}
}

func (p *Poller) runCleanup(ctx context.Context) {
	report, err := p.storage.LinkIntegrity(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Maintenance sweep failed: %v", err)
		}
		return
	}
	log.Printf("Maintenance sweep: %d articles, %d with empty links", report.TotalArticles, report.EmptyLinks)
}

// TriggerNow runs a fetch outside the schedule, on the caller's context.
func (p *Poller) TriggerNow(ctx context.Context, skipTranslation bool) (*models.RunResult, error) {
	result, err := p.runner.FetchAll(ctx, skipTranslation)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.mu.Lock()
	p.lastFetchTime = &now
	p.lastFetchResult = result
	p.mu.Unlock()

	if result.NewArticles > 0 && p.cacheManager != nil {
		p.cacheManager.Flush()
	}
	return result, nil
}

func (p *Poller) SetFetchEnabled(enabled bool) {
	p.mu.Lock()
	p.fetchEnabled = enabled
	p.mu.Unlock()
	log.Printf("Scheduled fetching enabled=%v", enabled)
}

func (p *Poller) SetTranslationEnabled(enabled bool) {
	p.mu.Lock()
	p.translationEnabled = enabled
	p.mu.Unlock()
	log.Printf("Scheduled translation enabled=%v", enabled)
}

func (p *Poller) Status() models.SchedulerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return models.SchedulerStatus{
		IsRunning:          p.isRunning,
		FetchEnabled:       p.fetchEnabled,
		TranslationEnabled: p.translationEnabled,
		FetchInProgress:    p.runner.InProgress(),
		LastFetchTime:      p.lastFetchTime,
		LastFetchResult:    p.lastFetchResult,
		NextFetch:          p.nextFetch,
		NextCleanup:        p.nextCleanup,
	}
}

func (p *Poller) setNextFetch(t time.Time) {
	p.mu.Lock()
	p.nextFetch = &t
	p.mu.Unlock()
}

func (p *Poller) setNextCleanup(t time.Time) {
	p.mu.Lock()
	p.nextCleanup = &t
	p.mu.Unlock()
}

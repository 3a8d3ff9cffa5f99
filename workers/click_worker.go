package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"link-reward-system/models"
	"link-reward-system/services"
)

// ClickJob is one logical click waiting to be recorded. EventID is
// minted once at enqueue time and reused across retries, so the store
// can deduplicate deliveries of the same click.
type ClickJob struct {
	EventID     string
	ShortLinkID string
	Code        string
	TeamID      string
	LinkUserID  *string

	IPAddress string
	UserAgent string
	Referrer  string
	ClickedAt time.Time

	attempts int
}

// ClickWorker drains the click queue in the background: geo-enriches
// each job, attributes referrals, and writes the event plus the atomic
// counter increment. The redirect path only ever calls Enqueue, which
// never blocks, so analytics latency and failures stay invisible to
// the caller.
type ClickWorker struct {
	store     services.ClickEventStore
	geo       *services.GeoResolver
	referrals services.ReferralProvider

	queue chan ClickJob
	wg    sync.WaitGroup

	consumers    int
	writeTimeout time.Duration
	maxAttempts  int
	baseBackoff  time.Duration
}

func NewClickWorker(store services.ClickEventStore, geo *services.GeoResolver, referrals services.ReferralProvider, queueSize, consumers int) *ClickWorker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if consumers <= 0 {
		consumers = 4
	}
	return &ClickWorker{
		store:        store,
		geo:          geo,
		referrals:    referrals,
		queue:        make(chan ClickJob, queueSize),
		consumers:    consumers,
		writeTimeout: 5 * time.Second,
		maxAttempts:  5,
		baseBackoff:  200 * time.Millisecond,
	}
}

func (w *ClickWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting click worker (%d consumers, queue %d)…", w.consumers, cap(w.queue))
	for i := 0; i < w.consumers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

func (w *ClickWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case job := <-w.queue:
			w.process(ctx, job)
		}
	}
}

// drain empties whatever is still queued once cancellation fires.
// Each job gets one last write attempt on a fresh context; a failure
// here is logged for backfill, never silently dropped.
func (w *ClickWorker) drain() {
	for {
		select {
		case job := <-w.queue:
			job.attempts = w.maxAttempts - 1
			w.process(context.Background(), job)
		default:
			return
		}
	}
}

// Enqueue hands a click to the background queue without blocking. A
// full queue drops the click and logs it with enough detail for manual
// backfill; the redirect has already been served either way.
func (w *ClickWorker) Enqueue(job ClickJob) bool {
	select {
	case w.queue <- job:
		return true
	default:
		log.Printf("❌ [CLICK_LOST] queue full, dropping click: code=%s event=%s at=%s",
			job.Code, job.EventID, job.ClickedAt.UTC().Format(time.RFC3339))
		return false
	}
}

func (w *ClickWorker) process(ctx context.Context, job ClickJob) {
	event := &models.ClickEvent{
		ID:          job.EventID,
		ShortLinkID: job.ShortLinkID,
		Code:        job.Code,
		TeamID:      job.TeamID,
		ClickedAt:   job.ClickedAt,
		IPAddress:   job.IPAddress,
		UserAgent:   job.UserAgent,
		Referrer:    job.Referrer,
	}

	// Enrichment is best-effort: a miss records the click with null
	// location, it never drops the click or surfaces an error.
	if loc := w.geo.Lookup(job.IPAddress); loc != nil {
		event.Country = &loc.Country
		event.City = &loc.City
	}

	// Referral attribution is best-effort for the same reason.
	if job.LinkUserID != nil && w.referrals != nil {
		if ref, err := w.referrals.ReferrerOf(ctx, *job.LinkUserID); err != nil {
			log.Printf("⚠️  Referral lookup failed for user %s: %v", *job.LinkUserID, err)
		} else if ref != nil {
			event.ReferredByUserID = &ref.ReferrerID
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	err := w.store.AppendAndCount(writeCtx, event)
	cancel()
	if err == nil {
		return
	}

	job.attempts++
	if job.attempts >= w.maxAttempts {
		log.Printf("❌ [CLICK_LOST] retries exhausted: code=%s event=%s at=%s err=%v",
			job.Code, job.EventID, job.ClickedAt.UTC().Format(time.RFC3339), err)
		return
	}

	backoff := w.baseBackoff << uint(job.attempts-1)
	log.Printf("⚠️  Click write failed (attempt %d/%d), retrying in %s: code=%s err=%v",
		job.attempts, w.maxAttempts, backoff, job.Code, err)

	retry := job
	time.AfterFunc(backoff, func() {
		if ctx.Err() != nil {
			log.Printf("❌ [CLICK_LOST] shutdown before retry: code=%s event=%s at=%s",
				retry.Code, retry.EventID, retry.ClickedAt.UTC().Format(time.RFC3339))
			return
		}
		select {
		case w.queue <- retry:
		default:
			log.Printf("❌ [CLICK_LOST] queue full on retry: code=%s event=%s at=%s",
				retry.Code, retry.EventID, retry.ClickedAt.UTC().Format(time.RFC3339))
		}
	})
}

// QueueDepth reports pending clicks, exposed on the health endpoint.
func (w *ClickWorker) QueueDepth() int {
	return len(w.queue)
}

// Wait blocks until the consumers have observed cancellation and
// drained the queue.
func (w *ClickWorker) Wait() {
	w.wg.Wait()
}

package alert

import (
	"context"
	"sync"
	"time"

	"camperwatch/internal/logutil"
	"camperwatch/internal/models"
)

// Channel delivers alerts to one external destination. Each channel applies
// its own gate and formatting; failures never block other channels.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alerts []models.Alert) (int, error)
	SendSummary(ctx context.Context, s Summary) error
}

// ChannelResult is one channel's delivery outcome.
type ChannelResult struct {
	Sent int    `json:"sent"`
	Err  string `json:"error,omitempty"`
}

// Result reports what happened to one Send call.
type Result struct {
	Delivered  map[string]ChannelResult `json:"delivered"`
	Suppressed []models.Alert           `json:"suppressed,omitempty"`
}

type cooldownKey struct {
	competitor string
	signal     models.SignalType
}

// Dispatcher fans alerts out across enabled channels, suppressing repeats of
// the same (competitor, signal_type) inside the cooldown window.
type Dispatcher struct {
	channels []Channel
	cooldown time.Duration
	logger   *logutil.Logger

	mu       sync.Mutex
	lastSent map[cooldownKey]time.Time

	// injectable for tests
	now func() time.Time
}

func NewDispatcher(channels []Channel, cooldown time.Duration, logger *logutil.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		cooldown: cooldown,
		logger:   logger,
		lastSent: make(map[cooldownKey]time.Time),
		now:      time.Now,
	}
}

// Send applies the cooldown gate, then delivers the surviving alerts to
// every enabled channel. Channel failures are reported independently. The
// cooldown window starts only once at least one channel accepted the batch,
// so a fully failed delivery can be retried immediately.
func (d *Dispatcher) Send(ctx context.Context, alerts []models.Alert) Result {
	res := Result{Delivered: make(map[string]ChannelResult)}

	deliverable := make([]models.Alert, 0, len(alerts))
	pending := make(map[cooldownKey]time.Time, len(alerts))
	d.mu.Lock()
	now := d.now()
	for _, a := range alerts {
		key := cooldownKey{competitor: a.Competitor, signal: a.Signal}
		if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cooldown {
			res.Suppressed = append(res.Suppressed, a)
			continue
		}
		if _, dup := pending[key]; dup {
			res.Suppressed = append(res.Suppressed, a)
			continue
		}
		pending[key] = now
		deliverable = append(deliverable, a)
	}
	d.mu.Unlock()

	if len(deliverable) == 0 {
		return res
	}

	delivered := false
	for _, ch := range d.channels {
		if !ch.Enabled() {
			continue
		}
		sent, err := ch.Send(ctx, deliverable)
		cr := ChannelResult{Sent: sent}
		if err != nil {
			cr.Err = err.Error()
			d.logger.Error("alert channel %s: %v", ch.Name(), err)
		} else {
			delivered = true
		}
		res.Delivered[ch.Name()] = cr
	}

	if delivered {
		d.mu.Lock()
		for key, ts := range pending {
			d.lastSent[key] = ts
		}
		d.mu.Unlock()
	}
	return res
}

// Summary is the daily digest document.
type Summary struct {
	Date               string   `json:"date"`
	CompaniesScraped   int      `json:"companies_scraped"`
	ObservationsStored int      `json:"observations_stored"`
	FallbacksUsed      int      `json:"fallbacks_used"`
	MarketAvg          float64  `json:"market_avg"`
	Highlights         []string `json:"highlights,omitempty"`
}

// SendDailySummary delivers a single aggregated digest to every enabled
// channel. The cooldown gate does not apply.
func (d *Dispatcher) SendDailySummary(ctx context.Context, s Summary) Result {
	res := Result{Delivered: make(map[string]ChannelResult)}
	for _, ch := range d.channels {
		if !ch.Enabled() {
			continue
		}
		cr := ChannelResult{}
		if err := ch.SendSummary(ctx, s); err != nil {
			cr.Err = err.Error()
			d.logger.Error("alert channel %s summary: %v", ch.Name(), err)
		} else {
			cr.Sent = 1
		}
		res.Delivered[ch.Name()] = cr
	}
	return res
}

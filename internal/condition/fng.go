package condition

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tgifai/teleworker/internal/pkg/httpx"
)

const (
	fngFearMax  = 24
	fngGreedMin = 76
	fngCacheTTL = 10 * time.Minute
)

// FNGReading is one crypto Fear & Greed index value.
type FNGReading struct {
	Value          int
	Classification string
	FetchedAt      time.Time
}

// FNGSource fetches the index and keeps the latest reading for a few minutes
// so a tick with several gated reminders asks the API once.
type FNGSource struct {
	URL    string
	Client *http.Client

	mu     sync.Mutex
	cached *FNGReading
}

func NewFNGSource(url string, client *http.Client) *FNGSource {
	return &FNGSource{URL: url, Client: client}
}

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

func (s *FNGSource) Reading(ctx context.Context, now time.Time) (FNGReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && now.Sub(s.cached.FetchedAt) < fngCacheTTL && !now.Before(s.cached.FetchedAt) {
		return *s.cached, nil
	}

	var resp fngResponse
	if err := httpx.GetJSON(ctx, s.Client, s.URL, &resp); err != nil {
		return FNGReading{}, fmt.Errorf("fetch fear & greed index: %w", err)
	}
	if len(resp.Data) == 0 {
		return FNGReading{}, fmt.Errorf("fear & greed index: empty data")
	}
	value, err := strconv.Atoi(resp.Data[0].Value)
	if err != nil {
		return FNGReading{}, fmt.Errorf("fear & greed index: bad value %q", resp.Data[0].Value)
	}

	reading := FNGReading{Value: value, Classification: resp.Data[0].ValueClassification, FetchedAt: now}
	s.cached = &reading
	return reading, nil
}

type fngMode int

const (
	fngEither fngMode = iota
	fngFear
	fngGreed
)

// FNGProvider holds when the index is in an extreme zone. Data carries the
// value, its classification and the suggested action.
type FNGProvider struct {
	Source *FNGSource
	mode   fngMode
}

func NewExtremeProvider(src *FNGSource) *FNGProvider {
	return &FNGProvider{Source: src, mode: fngEither}
}
func NewExtremeFearProvider(src *FNGSource) *FNGProvider {
	return &FNGProvider{Source: src, mode: fngFear}
}
func NewExtremeGreedProvider(src *FNGSource) *FNGProvider {
	return &FNGProvider{Source: src, mode: fngGreed}
}

func (p *FNGProvider) Evaluate(ctx context.Context, now time.Time) (Outcome, error) {
	r, err := p.Source.Reading(ctx, now)
	if err != nil {
		return Outcome{}, err
	}

	fear, greed := r.Value <= fngFearMax, r.Value >= fngGreedMin
	var trigger bool
	switch p.mode {
	case fngFear:
		trigger = fear
	case fngGreed:
		trigger = greed
	default:
		trigger = fear || greed
	}

	action := "holding"
	switch {
	case fear:
		action = "buying"
	case greed:
		action = "selling"
	}

	return Outcome{
		Trigger: trigger,
		Data: map[string]any{
			"value":          r.Value,
			"classification": r.Classification,
			"action":         action,
		},
	}, nil
}

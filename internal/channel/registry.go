package channel

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gg/gmap"
)

var (
	defaultRegistry = NewRegistry()

	Get        = defaultRegistry.Get
	GetText    = defaultRegistry.GetText
	GetVoice   = defaultRegistry.GetVoice
	Len        = defaultRegistry.Len
	List       = defaultRegistry.List
	Register   = defaultRegistry.Register
	Unregister = defaultRegistry.Unregister
)

// Default returns the process-wide registry used by the gateway and CLI.
func Default() *Registry {
	return defaultRegistry
}

type Registry struct {
	chans map[string]Channel

	cnt atomic.Int64
	mu  sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		chans: make(map[string]Channel, 8),
	}
}

func (r *Registry) Register(ch Channel) error {
	if ch == nil || ch.ID() == "" {
		return fmt.Errorf("channel id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chans[ch.ID()]; !ok {
		r.cnt.Add(1)
	}
	r.chans[ch.ID()] = ch
	return nil
}

func (r *Registry) Get(id string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.chans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ch, nil
}

func (r *Registry) GetText(id string) (TextChannel, error) {
	ch, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	tc, ok := ch.(TextChannel)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot send text", ErrWrongKind, id)
	}
	return tc, nil
}

func (r *Registry) GetVoice(id string) (VoiceChannel, error) {
	ch, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	vc, ok := ch.(VoiceChannel)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot place calls", ErrWrongKind, id)
	}
	return vc, nil
}

// List returns the registered channels ordered by id.
func (r *Registry) List() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := gmap.ToSlice(
		r.chans,
		func(k string, v Channel) Channel { return v },
	)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) Len() int {
	return int(r.cnt.Load())
}

func (r *Registry) Unregister(id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chans[id]; ok {
		delete(r.chans, id)
		r.cnt.Add(-1)
	}
}

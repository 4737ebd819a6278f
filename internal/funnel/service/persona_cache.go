package service

import (
	"context"
	"sync"
	"time"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/internal/funnel/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const defaultPersonaKey = "default"

// PersonaReader loads personas from storage.
type PersonaReader interface {
	GetPersona(ctx context.Context, id uuid.UUID) (domain.Persona, error)
	GetDefaultPersona(ctx context.Context) (domain.Persona, error)
}

type cachedPersona struct {
	persona   domain.Persona
	expiresAt time.Time
}

// PersonaCache serves personas from memory for a short TTL and collapses
// concurrent misses for the same key into one load.
type PersonaCache struct {
	reader PersonaReader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedPersona
	group   singleflight.Group
}

var _ ports.PersonaProvider = (*PersonaCache)(nil)

// NewPersonaCache wraps reader. A non-positive ttl disables caching.
func NewPersonaCache(reader PersonaReader, ttl time.Duration) *PersonaCache {
	return &PersonaCache{
		reader:  reader,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedPersona),
	}
}

// ResolvePersona implements ports.PersonaProvider.
func (c *PersonaCache) ResolvePersona(ctx context.Context, id *uuid.UUID) (domain.Persona, error) {
	key := defaultPersonaKey
	if id != nil {
		key = id.String()
	}

	if p, ok := c.lookup(key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		var (
			p   domain.Persona
			err error
		)
		if id != nil {
			p, err = c.reader.GetPersona(ctx, *id)
		} else {
			p, err = c.reader.GetDefaultPersona(ctx)
		}
		if err != nil {
			return domain.Persona{}, err
		}
		c.store(key, p)
		return p, nil
	})
	if err != nil {
		return domain.Persona{}, err
	}
	return v.(domain.Persona), nil
}

// Invalidate drops every cached persona. Called after admin updates.
func (c *PersonaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedPersona)
}

func (c *PersonaCache) lookup(key string) (domain.Persona, bool) {
	if c.ttl <= 0 {
		return domain.Persona{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return domain.Persona{}, false
	}
	return entry.persona, true
}

func (c *PersonaCache) store(key string, p domain.Persona) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedPersona{persona: p, expiresAt: c.now().Add(c.ttl)}
}

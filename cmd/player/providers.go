package main

import (
	"sync"

	"github.com/trailplay/geohunt/internal/geo"
)

// manualProvider is a position source fed by console `fix` commands.
// It stands in for a device GPS watch.
type manualProvider struct {
	mu sync.Mutex
	on func(geo.Sample)
}

func newManualProvider() *manualProvider {
	return &manualProvider{}
}

func (p *manualProvider) Start(onSample func(geo.Sample)) error {
	p.mu.Lock()
	p.on = onSample
	p.mu.Unlock()
	return nil
}

func (p *manualProvider) Stop() {
	p.mu.Lock()
	p.on = nil
	p.mu.Unlock()
}

// Inject delivers a sample as if the device reported it. Dropped when
// no watch is active.
func (p *manualProvider) Inject(s geo.Sample) bool {
	p.mu.Lock()
	on := p.on
	p.mu.Unlock()
	if on == nil {
		return false
	}
	on(s)
	return true
}

// manualScanner is a QR-decode source fed by console `scan` commands.
type manualScanner struct {
	mu sync.Mutex
	on func(payload string)
}

func newManualScanner() *manualScanner {
	return &manualScanner{}
}

func (s *manualScanner) Start(onDecode func(payload string)) error {
	s.mu.Lock()
	s.on = onDecode
	s.mu.Unlock()
	return nil
}

func (s *manualScanner) Stop() {
	s.mu.Lock()
	s.on = nil
	s.mu.Unlock()
}

// Inject delivers a decoded payload. Dropped when no scan is active.
func (s *manualScanner) Inject(payload string) bool {
	s.mu.Lock()
	on := s.on
	s.mu.Unlock()
	if on == nil {
		return false
	}
	on(payload)
	return true
}

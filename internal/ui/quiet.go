package ui

import (
	"github.com/bucketapp/ingestsim/internal/event"
	"github.com/bucketapp/ingestsim/internal/stats"
)

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	stats *stats.Collector
}

func (p *quietPresenter) Run(events <-chan event.Event) error {
	for range events {
		// The simulator writes the collector directly; presenters
		// only read from it, never write.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}

package tools

import (
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tradelog"
)

// Deps is what the catalogue operates on. Session is required; the rest
// are optional.
type Deps struct {
	Session *broker.Session
	News    interfaces.NewsSource
	Metrics *metrics.Metrics
	Journal *tradelog.Journal
	// Now is the clock for dates and option expiry checks; time.Now when
	// nil.
	Now func() time.Time
}

type toolset struct {
	Deps
}

func (t *toolset) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Catalogue registers every broker tool bound to deps.
func Catalogue(deps Deps) *Registry {
	ts := &toolset{Deps: deps}
	r := NewRegistry(deps.Metrics)
	for _, t := range ts.orderTools() {
		r.Register(t)
	}
	for _, t := range ts.optionTools() {
		r.Register(t)
	}
	for _, t := range ts.queryTools() {
		r.Register(t)
	}
	for _, t := range ts.accountTools() {
		r.Register(t)
	}
	for _, t := range ts.marketTools() {
		r.Register(t)
	}
	for _, t := range ts.lookupTools() {
		r.Register(t)
	}
	for _, t := range ts.sessionTools() {
		r.Register(t)
	}
	return r
}

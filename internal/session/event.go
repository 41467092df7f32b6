package session

import (
	"github.com/tgfetch/tgfetch/internal/bulk"
)

// Event is a progress notification published on a run's event stream.
type Event interface {
	Run() *Run
}

type runEvent struct {
	run *Run
}

func (e runEvent) Run() *Run {
	return e.run
}

// RunStarted fires once enumeration succeeded, before the first item.
type RunStarted struct {
	runEvent
	Discovered int
}

// ItemStarted fires before each item is fetched. Index is 1-based.
type ItemStarted struct {
	runEvent
	Index int
	Total int
	URL   string
}

// ItemFinished fires after each item, Err non-nil when it failed.
type ItemFinished struct {
	runEvent
	Index int
	Total int
	Err   error
}

// ContainerDelivered fires after each packaged container was handed to the
// deliverer, Err non-nil when packaging or delivery failed.
type ContainerDelivered struct {
	runEvent
	Container bulk.Container
	Receipt   *bulk.Receipt
	Err       error
}

// RunFinished is the final event on a run's stream. Report is nil when the
// run failed before enumerating anything.
type RunFinished struct {
	runEvent
	Report *bulk.Report
	Err    error
}

// eventReporter adapts bulk progress callbacks into run events and state
// updates, chaining to an inner reporter when one is configured.
type eventReporter struct {
	run   *Run
	inner bulk.Reporter
}

var _ bulk.Reporter = (*eventReporter)(nil)

func (er *eventReporter) RunStarted(discovered int) {
	er.run.updateState(func(rs *RunState) {
		rs.Status = StatusRunning
		rs.Discovered = discovered
	})
	er.run.events.Send(RunStarted{runEvent{er.run}, discovered})
	if er.inner != nil {
		er.inner.RunStarted(discovered)
	}
}

func (er *eventReporter) ItemStarted(index, total int, url string) {
	er.run.events.Send(ItemStarted{runEvent{er.run}, index, total, url})
	if er.inner != nil {
		er.inner.ItemStarted(index, total, url)
	}
}

func (er *eventReporter) ItemFinished(index, total int, err error) {
	if err == nil {
		er.run.updateState(func(rs *RunState) { rs.Processed++ })
	}
	er.run.events.Send(ItemFinished{runEvent{er.run}, index, total, err})
	if er.inner != nil {
		er.inner.ItemFinished(index, total, err)
	}
}

func (er *eventReporter) ContainerDelivered(container bulk.Container, receipt *bulk.Receipt, err error) {
	if err == nil {
		er.run.updateState(func(rs *RunState) { rs.Containers++ })
	}
	er.run.events.Send(ContainerDelivered{runEvent{er.run}, container, receipt, err})
	if er.inner != nil {
		er.inner.ContainerDelivered(container, receipt, err)
	}
}

func (er *eventReporter) RunFinished(processed, discovered int) {
	if er.inner != nil {
		er.inner.RunFinished(processed, discovered)
	}
}

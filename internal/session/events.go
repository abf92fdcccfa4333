package session

import (
	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/orchestrator"
)

// event is anything the Run loop processes. Commands carry a reply channel
// with room for one value so the loop never blocks on a caller.
type event interface{}

type addLocationCmd struct {
	loc   model.Location
	reply chan error
}

type removeLocationCmd struct {
	index int
	reply chan error
}

type calculateCmd struct {
	mode  model.TransportMode
	reply chan calcReply
}

type calcReply struct {
	res *orchestrator.Result
	err error
}

type mapClickCmd struct {
	lat, lng float64
	reply    chan error
}

type reloadMapCmd struct {
	reply chan error
}

type snapshotCmd struct {
	reply chan Snapshot
}

type waitIdleCmd struct {
	reply chan struct{}
}

// calcDone is posted by the calculation goroutine. The loop commits it.
type calcDone struct {
	ticket orchestrator.Ticket
	res    *orchestrator.Result
	err    error
	reply  chan calcReply
}

// enrichDone is posted once per candidate by the enrichment pipeline.
type enrichDone struct {
	result enrich.Result
}

// mapAddLocation is posted by the map engine after a click resolves.
type mapAddLocation struct {
	loc model.Location
}

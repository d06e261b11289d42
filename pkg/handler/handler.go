package handler

import (
	"context"

	"github.com/openfreebuds/freebuds-go/pkg/spp"
	"github.com/openfreebuds/freebuds-go/pkg/task"
)

// Requester issues correlated requests to the device. Implemented by
// the interaction client.
type Requester interface {
	SendPackage(ctx context.Context, req *spp.Packet) (*spp.Packet, error)
}

// PropertySink is where handlers publish decoded state. Implemented by
// the property store.
type PropertySink interface {
	Merge(namespace string, values map[string]any)
}

// Liveness reports whether the transport is still up; handlers hand it
// to their background loops to tell transient failures from a dead link.
type Liveness = task.LivenessFunc

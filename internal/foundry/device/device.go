// Package device implements the Device capability the build manager
// depends on (spec.md §4.9): an asynchronous query answering the
// device's kind and host triplet. The build manager makes this query
// first in pipeline preparation; it does not compare the answer with
// the toolchain's host triplet. Grounded on ide-device.c.
package device

import "context"

// Info is a device's reported kind and host triplet.
type Info struct {
	Kind        string
	HostTriplet string
}

// Device is the capability a pipeline/build-manager queries before
// preparing a toolchain.
type Device interface {
	ID() string
	InfoAsync(ctx context.Context) (Info, error)
}

// Static is a fixed-answer Device for local/demo builds: the "host"
// device the CLI defaults to when no other device is configured.
type Static struct {
	id   string
	info Info
}

// NewStatic returns a Device that always answers with info.
func NewStatic(id string, info Info) *Static {
	return &Static{id: id, info: info}
}

func (d *Static) ID() string { return d.id }

func (d *Static) InfoAsync(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	return d.info, nil
}

package loadbalancing

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// classicLB always prefers the first client of the first group.
type classicLB struct {
	group []ClientGroup
}

func NewClassicLB(group []ClientGroup) *classicLB {
	return &classicLB{group: group}
}

func (c *classicLB) Apply(ctx context.Context, container string, remote string) (io.ReadCloser, error) {
	if len(c.group) == 0 {
		return nil, fmt.Errorf("no clients available in the group")
	}

	var errs []error
	for gi, g := range c.group {
		var obj io.ReadCloser
		obj, errs = tryAll(ctx, gi, g.Clients, container, remote, errs)
		if obj != nil {
			return obj, nil
		}
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no clients available")
	}
	return nil, fmt.Errorf("all clients failed to get the object: %w", errors.Join(errs...))
}

// Package loadbalancing picks the storage a read is served from.
//
// Clients are arranged in groups tried in order: the first group holds the
// preferred replicas, later groups are fallbacks.
package loadbalancing

import (
	"context"
	"fmt"
	"io"
)

type Client interface {
	GetObject(ctx context.Context, container string, remote string) (io.ReadCloser, error)
}

type ClientGroup struct {
	Clients []Client
}

// LoadBalancer serves a read from one of its clients.
type LoadBalancer interface {
	Apply(ctx context.Context, container string, remote string) (io.ReadCloser, error)
}

type Strategy int

const (
	CLASSIC Strategy = iota
	ROUND_ROBIN
)

type Factory struct{}

func (Factory) NewLoadBalancer(strategy Strategy, groups []ClientGroup) (LoadBalancer, error) {
	switch strategy {
	case CLASSIC:
		return NewClassicLB(groups), nil
	case ROUND_ROBIN:
		return NewRoundRobinLB(groups), nil
	}

	return nil, fmt.Errorf("unsupported load balancing strategy: %v", strategy)
}

// tryAll asks each client in turn and returns the first success. Errors are
// labelled with the group index so failures can be told apart.
func tryAll(ctx context.Context, group int, clients []Client, container, remote string, errs []error) (io.ReadCloser, []error) {
	for _, client := range clients {
		obj, err := client.GetObject(ctx, container, remote)
		if err == nil {
			return obj, errs
		}
		errs = append(errs, fmt.Errorf("group#%d: %w", group, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}

package loadbalancing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// roundRobinLB rotates the starting client of the first group on every read
// and falls back to the other groups in order.
type roundRobinLB struct {
	group         []ClientGroup
	currentClient int
	mu            sync.Mutex
}

func NewRoundRobinLB(group []ClientGroup) *roundRobinLB {
	return &roundRobinLB{group: group}
}

// next returns the clients of the first group starting at the current one.
func (r *roundRobinLB) next() []Client {
	clients := r.group[0].Clients
	if len(clients) == 0 {
		return nil
	}

	r.mu.Lock()
	start := r.currentClient % len(clients)
	r.currentClient = (start + 1) % len(clients)
	r.mu.Unlock()

	ordered := make([]Client, 0, len(clients))
	for i := range clients {
		ordered = append(ordered, clients[(start+i)%len(clients)])
	}
	return ordered
}

func (r *roundRobinLB) Apply(ctx context.Context, container, remote string) (io.ReadCloser, error) {
	if len(r.group) == 0 {
		return nil, fmt.Errorf("no client groups configured")
	}

	obj, errs := tryAll(ctx, 0, r.next(), container, remote, nil)
	if obj != nil {
		return obj, nil
	}

	for gi, group := range r.group[1:] {
		obj, errs = tryAll(ctx, gi+1, group.Clients, container, remote, errs)
		if obj != nil {
			return obj, nil
		}
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no clients available")
	}
	return nil, errors.Join(errs...)
}

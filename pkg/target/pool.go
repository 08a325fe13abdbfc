package target

import (
	"math/rand"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// Pool holds one client per configured database alias and routes reads and
// writes. Reads may be spread over replicas by picking a random alias from
// the configured list.
type Pool struct {
	clients      map[string]Client
	defaultAlias string
}

func NewPool(defaultAlias string) *Pool {
	return &Pool{
		clients:      make(map[string]Client),
		defaultAlias: defaultAlias,
	}
}

func (p *Pool) Add(alias string, client Client) {
	p.clients[alias] = client
}

func (p *Pool) Get(alias string) (Client, error) {
	client, ok := p.clients[alias]
	if !ok {
		return nil, xerror.Errorf(xerror.Config, "no target database configured for alias %s", alias)
	}
	return client, nil
}

// PickRead returns a client for one of the given aliases at random, falling
// back to the default alias when none are configured.
func (p *Pool) PickRead(aliases []string) (Client, error) {
	return p.Get(pickAlias(aliases, p.defaultAlias))
}

// PickWrite behaves like PickRead; writes to any replica of a replicated
// table reach all of them.
func (p *Pool) PickWrite(aliases []string) (Client, error) {
	return p.Get(pickAlias(aliases, p.defaultAlias))
}

func (p *Pool) Close() error {
	var firstErr error
	for _, client := range p.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func pickAlias(aliases []string, fallback string) string {
	switch len(aliases) {
	case 0:
		return fallback
	case 1:
		return aliases[0]
	default:
		return aliases[rand.Intn(len(aliases))]
	}
}

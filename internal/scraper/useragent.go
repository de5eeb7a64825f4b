package scraper

import (
	"math/rand"
	"sync"
	"time"
)

type UserAgentPool struct {
	agents []string
	mu     sync.Mutex
	rng    *rand.Rand
}

func NewUserAgentPool(agents []string) *UserAgentPool {
	return &UserAgentPool{
		agents: append([]string(nil), agents...),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Random picks a user agent uniformly. An empty pool yields "".
func (p *UserAgentPool) Random() string {
	if len(p.agents) == 0 {
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.agents[p.rng.Intn(len(p.agents))]
}

package useragent

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync/atomic"
)

// DefaultPool holds current desktop browser identities. Retail storefronts
// serve their full product pages to these; mobile identities get redirected
// to differently structured m. pages.
var DefaultPool = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	// Firefox Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	// Safari Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	// Edge Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Strategy selects how Next picks an identity.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyRandom     Strategy = "random"
)

// Pool hands out User-Agent strings for browser sessions.
type Pool struct {
	uas      []string
	strategy Strategy
	counter  atomic.Uint64
}

// NewPool creates a new User-Agent pool. If the provided slice is empty,
// it falls back to DefaultPool. Blank entries are dropped.
func NewPool(uas []string) *Pool {
	copied := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua = strings.TrimSpace(ua); ua != "" {
			copied = append(copied, ua)
		}
	}
	if len(copied) == 0 {
		copied = append(copied, DefaultPool...)
	}
	return &Pool{
		uas:      copied,
		strategy: StrategySequential,
	}
}

// LoadFile reads one User-Agent per line; blank lines and '#' comments are skipped.
func LoadFile(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("useragent: %w", err)
	}
	defer f.Close()

	var uas []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uas = append(uas, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("useragent: %w", err)
	}
	return NewPool(uas), nil
}

// WithStrategy sets the selection strategy and returns the pool.
func (p *Pool) WithStrategy(s Strategy) *Pool {
	if s == StrategyRandom {
		p.strategy = StrategyRandom
	} else {
		p.strategy = StrategySequential
	}
	return p
}

// Next returns an identity according to the pool's strategy.
func (p *Pool) Next() string {
	if p.strategy == StrategyRandom {
		return p.GetRandom()
	}
	return p.GetSequential()
}

// GetSequential returns the next User-Agent in the pool in a round-robin fashion.
// It is safe for concurrent use.
func (p *Pool) GetSequential() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// GetRandom returns a random User-Agent from the pool using crypto/rand.
// It is safe for concurrent use.
func (p *Pool) GetRandom() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.GetSequential()
	}
	return p.uas[n.Int64()]
}

// GetAll returns a copy of all User-Agents currently in the pool.
func (p *Pool) GetAll() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}

package rpc

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"evmsniper/internal/domain"
)

// BalanceResult is the outcome of one token balance lookup
type BalanceResult struct {
	Token   domain.Token
	Balance *big.Int
	Err     error
}

// Pool limits concurrent node calls
type Pool struct {
	workerPool chan struct{} // Semaphore for limiting concurrent calls
}

// NewPool creates a pool running at most workers calls at once
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workerPool: make(chan struct{}, workers)}
}

// Balances looks up the balance of every token for its wallet. Results are
// keyed by lower-cased contract address.
func (p *Pool) Balances(ctx context.Context, client Client, tokens []domain.Token) map[string]BalanceResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]BalanceResult, len(tokens))
	)

	for _, token := range tokens {
		wg.Add(1)
		go func(t domain.Token) {
			defer wg.Done()
			res := BalanceResult{Token: t}

			select {
			case p.workerPool <- struct{}{}:
				res.Balance, res.Err = client.TokenBalance(ctx, t.Contract, t.Wallet)
				<-p.workerPool
			case <-ctx.Done():
				res.Err = ctx.Err()
			}

			mu.Lock()
			results[strings.ToLower(t.Contract)] = res
			mu.Unlock()
		}(token)
	}

	wg.Wait()
	return results
}

// Package parallel splits independent index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a range is split.
type Config struct {
	Workers  int // Goroutines to use; 1 or less runs on the caller
	MinChunk int // Smallest number of indices handed to one goroutine
}

// Default uses one worker per CPU and chunks of at least 64 indices.
func Default() Config {
	return Config{Workers: runtime.NumCPU(), MinChunk: 64}
}

// For calls fn(i) for every i in [0, n) and returns once all calls have.
// Calls for distinct indices may run concurrently, so fn must only touch
// state owned by index i.
func For(n int, cfg Config, fn func(i int)) {
	if n <= 0 {
		return
	}
	if cfg.Workers <= 1 || n <= cfg.MinChunk {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := max((n+cfg.Workers-1)/cfg.Workers, cfg.MinChunk, 1)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// Strategy names.
const (
	StrategyHybrid   = "hybrid"
	StrategyLexical  = "lexical"
	StrategySemantic = "semantic"

	// DefaultStrategy is used when no strategy is named.
	DefaultStrategy = StrategyHybrid
)

// StrategyFunc executes one retrieval flavor against the engine.
type StrategyFunc func(ctx context.Context, e *Engine, query string, topK int) ([]*FusedResult, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]StrategyFunc{
		StrategyHybrid:   hybridSearch,
		StrategyLexical:  lexicalSearch,
		StrategySemantic: semanticSearch,
	}
)

// Register adds or replaces a named strategy.
func Register(name string, fn StrategyFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Lookup resolves a strategy name. An empty name resolves to the default;
// an unknown name is a validation error listing the registered strategies.
func Lookup(name string) (StrategyFunc, error) {
	if name == "" {
		name = DefaultStrategy
	}

	registryMu.RLock()
	defer registryMu.RUnlock()

	fn, ok := registry[name]
	if !ok {
		return nil, rserrors.InvalidInputError(
			fmt.Sprintf("unknown search strategy %q (available: %s)",
				name, strings.Join(strategyNamesLocked(), ", ")), nil)
	}
	return fn, nil
}

// Strategies lists the registered strategy names, sorted.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return strategyNamesLocked()
}

func strategyNamesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

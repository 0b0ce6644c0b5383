package memory_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store/memory"
)

func TestAddIncludeIfAcyclic(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	added, err := s.AddIncludeIfAcyclic(ctx, "A", "B")
	if err != nil || !added {
		t.Fatalf("add A->B: added=%v err=%v", added, err)
	}
	added, err = s.AddIncludeIfAcyclic(ctx, "A", "B")
	if err != nil || added {
		t.Fatalf("re-add A->B: added=%v err=%v", added, err)
	}
	if _, err := s.AddIncludeIfAcyclic(ctx, "B", "A"); !errors.Is(err, permission.ErrRoleCycle) {
		t.Fatalf("expected ErrRoleCycle for B->A, got %v", err)
	}
	if _, err := s.AddIncludeIfAcyclic(ctx, "C", "C"); !errors.Is(err, permission.ErrRoleCycle) {
		t.Fatalf("expected ErrRoleCycle for self edge, got %v", err)
	}

	includes, _ := s.DirectIncludes(ctx, "A")
	if len(includes) != 1 || includes[0] != "B" {
		t.Fatalf("expected A -> B only, got %v", includes)
	}
}

func TestConcurrentIncludesNeverFormCycle(t *testing.T) {
	const nodes = 8
	s := memory.New()
	ctx := context.Background()
	r := rand.New(rand.NewSource(7))

	type edge struct{ from, to string }
	var edges []edge
	for i := 0; i < 400; i++ {
		from, to := r.Intn(nodes), r.Intn(nodes)
		edges = append(edges, edge{fmt.Sprintf("R%d", from), fmt.Sprintf("R%d", to)})
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errCh := make(chan error, len(edges))
	for _, e := range edges {
		wg.Add(1)
		go func(e edge) {
			defer wg.Done()
			<-start
			if _, err := s.AddIncludeIfAcyclic(ctx, e.from, e.to); err != nil && !errors.Is(err, permission.ErrRoleCycle) {
				errCh <- err
			}
		}(e)
	}
	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected error: %v", err)
	}

	graph, err := s.AllIncludes(ctx)
	if err != nil {
		t.Fatalf("all includes: %v", err)
	}
	if role, ok := findCycle(graph); ok {
		t.Fatalf("concurrent inserts left a cycle through %s: %v", role, graph)
	}
}

func findCycle(graph map[string][]string) (string, bool) {
	const (
		unseen = iota
		active
		done
	)
	state := make(map[string]int)
	var visit func(string) bool
	visit = func(n string) bool {
		switch state[n] {
		case active:
			return true
		case done:
			return false
		}
		state[n] = active
		for _, next := range graph[n] {
			if visit(next) {
				return true
			}
		}
		state[n] = done
		return false
	}
	for n := range graph {
		if visit(n) {
			return n, true
		}
	}
	return "", false
}

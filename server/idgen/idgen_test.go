package idgen

import (
	"regexp"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	id := New()

	expectedLen := 20
	if len(id) != expectedLen {
		t.Errorf("Expected ID length to be %d, got %d", expectedLen, len(id))
	}

	pattern := `^[a-z2-7]+$`
	matched, err := regexp.MatchString(pattern, id)
	if err != nil {
		t.Fatalf("Error matching regex: %v", err)
	}
	if !matched {
		t.Errorf("ID format does not match expected pattern: %s", id)
	}
}

func TestUniqueness(t *testing.T) {
	count := 10000
	ids := make(map[string]struct{}, count)

	for i := 0; i < count; i++ {
		id := New()
		if _, exists := ids[id]; exists {
			t.Errorf("Duplicate ID found: %s", id)
		}
		ids[id] = struct{}{}
	}
}

func TestConcurrentGeneration(t *testing.T) {
	count := 1000
	ids := make([]string, count)
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = New()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, count)
	for _, id := range ids {
		if _, exists := seen[id]; exists {
			t.Errorf("Duplicate ID found under concurrency: %s", id)
		}
		seen[id] = struct{}{}
	}
}

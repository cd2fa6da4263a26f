package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	tests := []struct {
		prefix string
	}{
		{"frag"},
		{"rev"},
		{"req"},
	}

	for _, tt := range tests {
		id := gen.GenerateWithPrefix(tt.prefix)

		if !strings.HasPrefix(id, tt.prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", tt.prefix, id)
		}

		// Verify ULID part is valid
		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}

		if !IsValid(parts[1]) {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	fragID := NewFragmentID()
	revID := NewRevisionID()
	reqID := NewRequestID()

	if !strings.HasPrefix(string(fragID), "frag_") {
		t.Errorf("FragmentID should start with 'frag_', got: %s", fragID)
	}

	if !strings.HasPrefix(string(revID), "rev_") {
		t.Errorf("RevisionID should start with 'rev_', got: %s", revID)
	}

	if !strings.HasPrefix(string(reqID), "req_") {
		t.Errorf("RequestID should start with 'req_', got: %s", reqID)
	}
}

func TestIsValid(t *testing.T) {
	gen := NewGenerator()

	validID := gen.GenerateString()
	if !IsValid(validID) {
		t.Error("Generated ULID should be valid")
	}

	if !IsValid(gen.GenerateWithPrefix(FragmentPrefix)) {
		t.Error("Prefixed ULID should be valid")
	}

	invalidIDs := []string{
		"",
		"invalid",
		"1234567890",
		"zzzzzzzzzzzzzzzzzzzzzzzzzzz", // Invalid characters
	}

	for _, id := range invalidIDs {
		if IsValid(id) {
			t.Errorf("ID should be invalid: %s", id)
		}
	}
}

func TestParse(t *testing.T) {
	gen := NewGenerator()

	original := gen.Generate()
	str := original.String()

	parsed, err := Parse(str)
	if err != nil {
		t.Fatalf("Failed to parse ULID: %v", err)
	}

	if parsed.String() != str {
		t.Errorf("Parsed ULID doesn't match original: %s != %s", parsed.String(), str)
	}

	// Prefixed form parses to the same ULID
	prefixed, err := Parse("frag_" + str)
	if err != nil {
		t.Fatalf("Failed to parse prefixed ID: %v", err)
	}
	if prefixed.String() != str {
		t.Errorf("Prefix should be stripped before parsing: %s != %s", prefixed.String(), str)
	}
}

func TestTimestamp(t *testing.T) {
	gen := NewGenerator()

	before := time.Now().Truncate(time.Millisecond)
	id := gen.GenerateString()
	after := time.Now().Add(time.Millisecond)

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Failed to extract timestamp: %v", err)
	}

	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp %v not in range [%v, %v]", ts, before, after)
	}
}

func TestCreationOrderSortable(t *testing.T) {
	// The gateway orders fragments by id; ids must sort in creation order.
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, string(NewFragmentID()))
		time.Sleep(2 * time.Millisecond)
	}

	if !sort.StringsAreSorted(ids) {
		t.Errorf("Fragment IDs should sort in creation order: %v", ids)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 10
	const perGoroutine = 100

	seen := sync.Map{}
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := gen.GenerateString()
				if _, dup := seen.LoadOrStore(id, true); dup {
					t.Errorf("Duplicate ID generated: %s", id)
				}
			}
		}()
	}

	wg.Wait()
}

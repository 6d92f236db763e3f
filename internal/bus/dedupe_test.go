package bus

import (
	"fmt"
	"testing"
	"time"
)

func TestDedupe_FirstSeenNotDuplicate(t *testing.T) {
	d := NewDedupeCache(time.Minute, 10)
	if d.IsDuplicate("w-1") {
		t.Error("first sighting reported as duplicate")
	}
	if !d.IsDuplicate("w-1") {
		t.Error("replay not reported as duplicate")
	}
}

func TestDedupe_TTLExpiry(t *testing.T) {
	d := NewDedupeCache(20*time.Millisecond, 10)
	d.IsDuplicate("w-1")
	time.Sleep(60 * time.Millisecond)
	if d.IsDuplicate("w-1") {
		t.Error("expired entry still reported as duplicate")
	}
}

func TestDedupe_SizeBounded(t *testing.T) {
	d := NewDedupeCache(time.Minute, 8)
	for i := 0; i < 100; i++ {
		d.IsDuplicate(fmt.Sprintf("w-%d", i))
	}
	if n := d.Len(); n > 8 {
		t.Errorf("cache len = %d, want <= 8", n)
	}
}

package config

import "testing"

func TestNewConfigDefaultsValidate(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	if err := c.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if !c.Deflicker {
		t.Fatal("deflicker should default to enabled")
	}
	if c.DeflickerTargetMedian != DefaultDeflickerTargetMedian {
		t.Fatalf("DeflickerTargetMedian = %d, want %d", c.DeflickerTargetMedian, DefaultDeflickerTargetMedian)
	}
}

func TestValidateRequiresMLVPath(t *testing.T) {
	c := NewConfig("", "/var/log")
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty MLVPath")
	}
}

func TestValidateRejectsUnknownNameScheme(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	c.NameScheme = "bogus"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown name scheme")
	}
}

func TestValidateRejectsOutOfRangeDualISO(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	c.DualISO = 3
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for dual_iso=3")
	}
}

func TestValidateRejectsInvalidChromaSmooth(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	for _, v := range []int{1, 4, 6, -1} {
		c.ChromaSmooth = v
		if err := c.Validate(); err == nil {
			t.Fatalf("chroma_smooth=%d should be rejected", v)
		}
	}
	for _, v := range []int{0, 2, 3, 5} {
		c.ChromaSmooth = v
		if err := c.Validate(); err != nil {
			t.Fatalf("chroma_smooth=%d should be accepted, got %v", v, err)
		}
	}
}

func TestValidateRejectsNegativeCacheBudget(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	c.CacheBudgetBytes = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative cache budget")
	}
}

func TestValidateRejectsZeroHeaderCacheRecordings(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	c.HeaderCacheRecordings = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for header_cache_recordings < 1")
	}
}

func TestValidateRejectsNegativeFPS(t *testing.T) {
	c := NewConfig("/mnt/cf", "/var/log")
	c.FPS = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative fps")
	}
}

package filtercache

import (
	"os"
	"testing"
)

func TestCachingFlag_Default(t *testing.T) {
	enabledAtStart := IsCachingEnabled()
	cleanup := WithCachingEnabled()
	defer cleanup()

	env := os.Getenv(EnvCachingDisabled)
	if env != "true" && env != "1" && !enabledAtStart {
		t.Error("caching should be enabled by default")
	}
}

func TestCachingFlag_Toggle(t *testing.T) {
	cleanup := WithCachingEnabled()
	defer cleanup()

	DisableCaching()
	if IsCachingEnabled() {
		t.Error("DisableCaching should turn memoization off")
	}

	EnableCaching()
	if !IsCachingEnabled() {
		t.Error("EnableCaching should turn memoization back on")
	}

	SetCachingEnabled(false)
	if IsCachingEnabled() {
		t.Error("SetCachingEnabled(false) should turn memoization off")
	}
}

func TestCachingFlag_ScopedCleanup(t *testing.T) {
	cleanup := WithCachingEnabled()
	defer cleanup()

	restore := WithCachingDisabled()
	if IsCachingEnabled() {
		t.Error("WithCachingDisabled should turn memoization off")
	}
	restore()
	if !IsCachingEnabled() {
		t.Error("cleanup should restore the previous state")
	}
}

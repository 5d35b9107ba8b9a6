package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: time.Now().Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "just expired",
			expires: time.Now().Add(-1 * time.Second),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{
				Expires: tt.expires,
			}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "one minute remaining",
			expires: time.Now().Add(1 * time.Minute),
			wantMin: 59 * time.Second,
			wantMax: 61 * time.Second,
		},
		{
			name:    "already expired",
			expires: time.Now().Add(-1 * time.Hour),
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{
				Expires: tt.expires,
			}
			got := entry.TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestRedisTTL(t *testing.T) {
	fresh := time.Now().Add(1 * time.Minute)

	plain := &CacheEntry{Expires: fresh}
	if got := redisTTL(plain); got > time.Minute+time.Second {
		t.Errorf("entry without validators kept for %v, want <= 1m", got)
	}

	validated := &CacheEntry{Expires: fresh, ETag: `"v1"`}
	if got := redisTTL(validated); got < StaleRetention {
		t.Errorf("entry with ETag kept for %v, want >= %v", got, StaleRetention)
	}

	expired := &CacheEntry{Expires: time.Now().Add(-time.Minute)}
	if got := redisTTL(expired); got != 0 {
		t.Errorf("expired entry without validators TTL = %v, want 0", got)
	}
}

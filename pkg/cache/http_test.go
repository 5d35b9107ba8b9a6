package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	lastMod := time.Now().Add(-1 * time.Hour).UTC().Truncate(time.Second)
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Etag":          []string{`"abc123"`},
			"Last-Modified": []string{lastMod.Format(http.TimeFormat)},
			"Cache-Control": []string{"max-age=120"},
		},
	}

	entry := NewEntry(resp, []byte(`[]`))

	if string(entry.Data) != "[]" {
		t.Errorf("Data = %s, want []", entry.Data)
	}
	if entry.ETag != `"abc123"` {
		t.Errorf("ETag = %q", entry.ETag)
	}
	if !entry.LastModified.Equal(lastMod) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastMod)
	}
	if ttl := entry.TTL(); ttl < 119*time.Second || ttl > 121*time.Second {
		t.Errorf("TTL = %v, want ~120s", ttl)
	}
}

func TestParseExpires(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		headers http.Header
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "no headers uses default",
			headers: http.Header{},
			wantMin: DefaultTTL - time.Second,
			wantMax: DefaultTTL + time.Second,
		},
		{
			name:    "expires header",
			headers: http.Header{"Expires": []string{now.Add(5 * time.Minute).Format(http.TimeFormat)}},
			wantMin: 4 * time.Minute,
			wantMax: 5*time.Minute + time.Second,
		},
		{
			name:    "max-age wins over expires",
			headers: http.Header{"Cache-Control": []string{"public, max-age=30"}, "Expires": []string{now.Add(time.Hour).Format(http.TimeFormat)}},
			wantMin: 29 * time.Second,
			wantMax: 31 * time.Second,
		},
		{
			name:    "no-store",
			headers: http.Header{"Cache-Control": []string{"no-store"}},
			wantMin: -time.Second,
			wantMax: time.Second,
		},
		{
			name:    "past expires",
			headers: http.Header{"Expires": []string{now.Add(-time.Hour).Format(http.TimeFormat)}},
			wantMin: -time.Second,
			wantMax: time.Second,
		},
		{
			name:    "invalid expires uses default",
			headers: http.Header{"Expires": []string{"0"}},
			wantMin: DefaultTTL - time.Second,
			wantMax: DefaultTTL + time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := time.Until(ParseExpires(tt.headers))
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("ParseExpires() in %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	lastMod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		entry            *CacheEntry
		wantIfNoneMatch  string
		wantIfModSince   string
		wantShouldCondit bool
	}{
		{
			name:             "etag preferred",
			entry:            &CacheEntry{ETag: `"v1"`, LastModified: lastMod},
			wantIfNoneMatch:  `"v1"`,
			wantShouldCondit: true,
		},
		{
			name:             "last modified only",
			entry:            &CacheEntry{LastModified: lastMod},
			wantIfModSince:   lastMod.Format(http.TimeFormat),
			wantShouldCondit: true,
		},
		{
			name:             "no validators",
			entry:            &CacheEntry{},
			wantShouldCondit: false,
		},
		{
			name:             "nil entry",
			entry:            nil,
			wantShouldCondit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldMakeConditionalRequest(tt.entry); got != tt.wantShouldCondit {
				t.Errorf("ShouldMakeConditionalRequest() = %v, want %v", got, tt.wantShouldCondit)
			}

			req, _ := http.NewRequest(http.MethodGet, "http://catalog.test/products/search", nil)
			AddConditionalHeaders(req, tt.entry)

			if got := req.Header.Get("If-None-Match"); got != tt.wantIfNoneMatch {
				t.Errorf("If-None-Match = %q, want %q", got, tt.wantIfNoneMatch)
			}
			if got := req.Header.Get("If-Modified-Since"); got != tt.wantIfModSince {
				t.Errorf("If-Modified-Since = %q, want %q", got, tt.wantIfModSince)
			}
		})
	}
}

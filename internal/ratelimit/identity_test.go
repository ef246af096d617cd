package ratelimit

import (
	"net/http"
	"testing"
)

func TestIdentify_HeaderPrecedence(t *testing.T) {
	cases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		userID     string
		want       string
	}{
		{
			name:       "real ip header wins over forwarded-for",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9", "X-Forwarded-For": "203.0.113.1, 198.51.100.1"},
			remoteAddr: "10.0.0.1:4321",
			want:       "198.51.100.9",
		},
		{
			name:       "first forwarded-for entry",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"},
			remoteAddr: "10.0.0.1:4321",
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded-for entries are trimmed",
			headers:    map[string]string{"X-Forwarded-For": "  203.0.113.1 , 198.51.100.1"},
			remoteAddr: "10.0.0.1:4321",
			want:       "203.0.113.1",
		},
		{
			name:       "header lookup is case-insensitive",
			headers:    map[string]string{"x-real-ip": "198.51.100.9"},
			remoteAddr: "10.0.0.1:4321",
			want:       "198.51.100.9",
		},
		{
			name:       "falls back to transport address",
			remoteAddr: "10.0.0.1:4321",
			want:       "10.0.0.1",
		},
		{
			name:       "transport address without port",
			remoteAddr: "10.0.0.1",
			want:       "10.0.0.1",
		},
		{
			name: "nothing at all",
			want: IdentifierUnknown,
		},
		{
			name:       "authenticated caller composes user and ip",
			remoteAddr: "10.0.0.1:4321",
			userID:     "42",
			want:       "user:42:10.0.0.1",
		},
		{
			name:   "authenticated caller without address",
			userID: "42",
			want:   "user:42",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tc.headers {
				headers.Set(k, v)
			}

			got := Identify(RequestMeta{
				Headers:    headers,
				RemoteAddr: tc.remoteAddr,
				UserID:     tc.userID,
			})
			if got != tc.want {
				t.Fatalf("Identify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIdentify_AuthenticatedAndAnonymousNeverCollide(t *testing.T) {
	anon := Identify(RequestMeta{RemoteAddr: "10.0.0.1:4321"})
	authed := Identify(RequestMeta{RemoteAddr: "10.0.0.1:4321", UserID: "42"})

	if anon == authed {
		t.Fatalf("authenticated and anonymous identifiers must differ, both %q", anon)
	}
}

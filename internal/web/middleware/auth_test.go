package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

const owner = "6f1c2a39-5d0e-4d8b-9a51-0b7db9e0c001"

func TestIdentity(t *testing.T) {
	withKeys := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"key-one", "key-two"}}
	noKeys := &config.SecurityConfig{RequireAPIKey: true}
	open := &config.SecurityConfig{}

	tests := []struct {
		name     string
		cfg      *config.SecurityConfig
		path     string
		key      string
		owner    string
		want     int
		wantCode string
	}{
		{"missing key", withKeys, "/", "", owner, http.StatusUnauthorized, "AUTH001"},
		{"wrong key", withKeys, "/", "key-three", owner, http.StatusForbidden, "AUTH002"},
		{"no keys configured", noKeys, "/", "key-one", owner, http.StatusForbidden, "AUTH002"},
		{"valid key without owner", withKeys, "/", "key-one", "", http.StatusUnauthorized, "VAL002"},
		{"second key", withKeys, "/", "key-two", owner, http.StatusOK, ""},
		{"keys not required", open, "/", "", owner, http.StatusOK, ""},
		{"owner in query", open, "/?owner=" + owner, "", "", http.StatusOK, ""},
		{"owner is canonicalized", open, "/", "", strings.ToUpper(owner), http.StatusOK, ""},
		{"owner not a uuid", open, "/", "", "prof-1", http.StatusUnauthorized, "VAL002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner, gotLogOwner string
			h := Identity(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotOwner = OwnerFrom(r.Context())
				gotLogOwner = logging.Owner(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			if tt.owner != "" {
				req.Header.Set(OwnerHeader, tt.owner)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantCode, body["code"])
				assert.NotEmpty(t, body["error"])
				assert.Empty(t, gotOwner)
				return
			}
			assert.Equal(t, owner, gotOwner)
			assert.Equal(t, owner, gotLogOwner)
		})
	}
}

func TestOwnerFrom_OutsideIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, OwnerFrom(req.Context()))
}

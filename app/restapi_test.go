package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restFixture(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f := &Fabric{
		singletons:  Singletons{"a": newServiceA()},
		services:    map[string]Service{},
		updated:     map[string]time.Time{},
		flushed:     map[string]time.Time{},
		syncService: make(chan string),
		askStats:    make(chan chan stats),
		syncTrigger: time.NewTicker(time.Hour),
	}
	f.initServices()
	go f.sync(ctx)

	s := newServer(f)
	s.initRestAPI()

	srv := httptest.NewServer(s.router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func TestRestResources(t *testing.T) {
	srv := restFixture(t)

	equalJson := func(expected map[string]any) func(actual map[string]any) {
		return func(actual map[string]any) {
			assert.Equal(t, expected, actual)
		}
	}

	type permutation struct {
		Verb    string
		Url     string
		Match   func(map[string]any)
		Status  int
		NotJson string
	}
	tests := []permutation{
		{ // Fabric
			Verb:   "GET",
			Url:    "/api",
			Status: 200,
			Match: func(services map[string]any) {
				assert.NotNil(t, services["a"], "must have A service")
			},
		},
		{ // HttpGet
			Status:  200,
			Verb:    "GET",
			Url:     "/api/a",
			NotJson: `1`,
		},
		{ // HttpGetByID
			Status:  200,
			Verb:    "GET",
			Url:     "/api/a/a",
			NotJson: `"a"`,
		},
		{ // HttpGetByID
			Status:  200,
			Verb:    "GET",
			Url:     "/api/a/a?format=text",
			NotJson: `a`,
		},
		{ // HttpPost
			Status: 200,
			Verb:   "POST",
			Url:    "/api/a",
			Match: equalJson(map[string]any{
				"number": 100500.0,
			}),
		},
		{ // HttpDeleteByID
			Status: 400,
			Verb:   "DELETE",
			Url:    "/api/a/error",
			Match: equalJson(map[string]any{
				"Message": "just error: error",
			}),
		},
		{ // HttpDeleteByID
			Status: 404,
			Verb:   "DELETE",
			Url:    "/api/a/not-found",
			Match: equalJson(map[string]any{
				"Message": "no ID found",
			}),
		},
		{ // HttpDeleteByID panics with an error and recovers
			Status: 400,
			Verb:   "DELETE",
			Url:    "/api/a/soft",
			Match: equalJson(map[string]any{
				"Message": "panic with error: soft",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.Verb, tt.Url), func(t *testing.T) {
			request, err := http.NewRequest(tt.Verb, srv.URL+tt.Url, nil)
			require.NoError(t, err)
			response, err := http.DefaultClient.Do(request)
			require.NoError(t, err)
			defer response.Body.Close()
			assert.Equal(t, tt.Status, response.StatusCode)
			raw, err := io.ReadAll(response.Body)
			require.NoError(t, err)
			var freeForm map[string]any
			json.Unmarshal(raw, &freeForm)
			if len(freeForm) == 0 {
				assert.Equal(t, tt.NotJson, string(raw), "NOT JSON")
			} else if tt.Match != nil {
				tt.Match(freeForm)
			} else {
				t.Errorf("has response, but no matcher: %v", freeForm)
			}
		})
	}
}

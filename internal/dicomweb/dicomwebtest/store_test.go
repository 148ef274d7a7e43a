package dicomwebtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/torosent/studybench/internal/manifest"
)

func get(t *testing.T, url, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestStoreManifestRoundTrip(t *testing.T) {
	store := NewSyntheticStore("1.2.3", 3, 4)
	instances, err := manifest.Parse(store.Manifest())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(instances) != 3 || manifest.TotalFrames(instances) != 12 {
		t.Fatalf("parsed %d instances / %d frames, want 3 / 12", len(instances), manifest.TotalFrames(instances))
	}
}

func TestStoreServesStudy(t *testing.T) {
	store := NewSyntheticStore("1.2.3", 1, 2)
	store.Token = "secret"
	store.FrameSize = 10
	store.CacheHeader = "MISS"
	store.FailFrame = func(_, _ string, frame int) int {
		if frame == 2 {
			return http.StatusServiceUnavailable
		}
		return 0
	}
	srv := httptest.NewServer(store)
	defer srv.Close()

	base := srv.URL + "/v1/projects/p/locations/l/datasets/d/dicomStores/s/dicomWeb/studies/1.2.3"
	inst := store.Instances[0]
	frameURL := base + "/series/" + inst.SeriesUID + "/instances/" + inst.InstanceUID + "/frames/"

	tests := []struct {
		name       string
		url        string
		token      string
		wantStatus int
		wantBytes  int
	}{
		{"search", base + "/instances", "secret", http.StatusOK, len(store.Manifest())},
		{"frame", frameURL + "1", "secret", http.StatusOK, 10},
		{"failing frame", frameURL + "2", "secret", http.StatusServiceUnavailable, -1},
		{"frame out of range", frameURL + "3", "secret", http.StatusNotFound, -1},
		{"other study", srv.URL + "/studies/9.9.9/instances", "secret", http.StatusNotFound, -1},
		{"bad token", base + "/instances", "wrong", http.StatusUnauthorized, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, tt.url, tt.token)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantBytes >= 0 && len(body) != tt.wantBytes {
				t.Errorf("body = %d bytes, want %d", len(body), tt.wantBytes)
			}
		})
	}

	if store.Queries() != 1 || store.FrameRequests() != 3 || store.Unauthorized() != 1 {
		t.Errorf("counters queries=%d frames=%d unauthorized=%d", store.Queries(), store.FrameRequests(), store.Unauthorized())
	}
}

func TestStoreEmptyStudy(t *testing.T) {
	store := NewSyntheticStore("1.2.3", 0, 0)
	srv := httptest.NewServer(store)
	defer srv.Close()

	resp, body := get(t, srv.URL+"/studies/1.2.3/instances", "")
	if resp.StatusCode != http.StatusNoContent || len(body) != 0 {
		t.Fatalf("status = %d, body = %q, want 204 and no body", resp.StatusCode, body)
	}
}

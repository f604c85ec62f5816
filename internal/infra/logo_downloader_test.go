package infra

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"

	"stock_dash/internal/infra/httpclient"
)

func newLogoServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "MISSING") {
			http.NotFound(w, r)
			return
		}
		img := imaging.New(120, 40, color.NRGBA{R: 200, A: 255})
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestDownloader(t *testing.T, server *httptest.Server) *LogoDownloader {
	t.Helper()
	client, err := httpclient.NewClient(httpclient.ClientConfig{HTTPClient: server.Client()})
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewLogoDownloader(t.TempDir(), server.URL+"/img/{symbol}.png", 32, client, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestLogoDownloader_Download(t *testing.T) {
	var hits atomic.Int32
	d := newTestDownloader(t, newLogoServer(t, &hits))

	path, err := d.Download(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open saved logo: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("logo size = %dx%d, want 32x32", b.Dx(), b.Dy())
	}

	// Cached on second call.
	if _, err := d.Download(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestLogoDownloader_Sync(t *testing.T) {
	var hits atomic.Int32
	d := newTestDownloader(t, newLogoServer(t, &hits))

	paths := d.Sync(context.Background(), []string{"AAPL", "MSFT", "^GSPC", "MISSING"}, 2)
	if len(paths) != 2 {
		t.Fatalf("paths = %v, want AAPL and MSFT", paths)
	}
	if _, ok := paths["^GSPC"]; ok {
		t.Error("indices should be skipped")
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestSanitizeSymbol(t *testing.T) {
	tests := map[string]string{
		"AAPL":      "AAPL",
		"BRK-B":     "BRKB",
		"../../etc": "etc",
		"^GSPC":     "GSPC",
	}
	for in, want := range tests {
		if got := sanitizeSymbol(in); got != want {
			t.Errorf("sanitizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

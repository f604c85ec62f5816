package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"stock_dash/internal/infra/httpclient"
)

// LogoDownloader fetches and caches square symbol logos on disk.
type LogoDownloader struct {
	dir         string
	urlTemplate string
	size        int
	doer        httpclient.Doer
	logger      *slog.Logger
}

func NewLogoDownloader(dir, urlTemplate string, size int, doer httpclient.Doer, logger *slog.Logger) (*LogoDownloader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logo directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogoDownloader{dir: dir, urlTemplate: urlTemplate, size: size, doer: doer, logger: logger}, nil
}

// Download stores the logo for symbol and returns its local path. Existing
// files are returned without a request.
func (d *LogoDownloader) Download(ctx context.Context, symbol string) (string, error) {
	safe := sanitizeSymbol(symbol)
	if safe == "" {
		return "", fmt.Errorf("invalid symbol: %s", symbol)
	}
	filePath := d.Path(symbol)
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil
	}

	url := strings.ReplaceAll(d.urlTemplate, "{symbol}", strings.ToUpper(safe))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.doer.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	src, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Crop to the center square so wide wordmarks are not squashed.
	logo := imaging.Fill(src, d.size, d.size, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(logo, filePath); err != nil {
		return "", fmt.Errorf("failed to save logo: %w", err)
	}
	return filePath, nil
}

// Path returns where the logo for symbol is stored.
func (d *LogoDownloader) Path(symbol string) string {
	return filepath.Join(d.dir, strings.ToLower(sanitizeSymbol(symbol))+".png")
}

// Sync downloads logos for symbols with at most concurrency requests in
// flight. Indices have no logo and are skipped. Failures are logged and left
// out of the result.
func (d *LogoDownloader) Sync(ctx context.Context, symbols []string, concurrency int) map[string]string {
	if concurrency <= 0 {
		concurrency = 3
	}
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		paths = make(map[string]string, len(symbols))
		sem   = make(chan struct{}, concurrency)
	)

	for _, sym := range symbols {
		if strings.HasPrefix(sym, "^") {
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return paths
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			path, err := d.Download(ctx, sym)
			if err != nil {
				d.logger.Debug("Logo download failed", slog.String("symbol", sym), slog.Any("error", err))
				return
			}
			mu.Lock()
			paths[sym] = path
			mu.Unlock()
		}(sym)
	}
	wg.Wait()
	return paths
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}

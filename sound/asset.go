package sound

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
)

// LoadAsset reads and decodes an mp3 asset from a local path or an http(s) URL
func LoadAsset(ctx context.Context, client *http.Client, asset string) (*Buffer, error) {
	if !strings.EqualFold(path.Ext(stripQuery(asset)), ".mp3") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}

	r, err := openAsset(ctx, client, asset)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf, err := DecodeMP3(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", asset, err)
	}
	return buf, nil
}

func openAsset(ctx context.Context, client *http.Client, asset string) (io.ReadCloser, error) {
	if !strings.HasPrefix(asset, "http://") && !strings.HasPrefix(asset, "https://") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(asset)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset: %w", err)
		}
		return f, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build asset request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch asset: status %s", resp.Status)
	}
	return resp.Body, nil
}

func stripQuery(asset string) string {
	if i := strings.IndexAny(asset, "?#"); i >= 0 {
		return asset[:i]
	}
	return asset
}

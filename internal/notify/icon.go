package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/webp"
)

const (
	maxIconBytes    = 5 << 20
	defaultIconName = "default.png"
)

// IconResolver turns a notification icon reference into a local file path.
// Remote icons are downloaded into a cache; WebP icons are converted to PNG.
// Any failure resolves to the default icon.
type IconResolver struct {
	cacheDir    string
	defaultIcon string
	client      *http.Client
	logger      *slog.Logger
}

// NewIconResolver creates a resolver caching into cacheDir. An empty
// defaultIcon means a generated placeholder in the cache directory.
func NewIconResolver(cacheDir, defaultIcon string, timeout time.Duration, logger *slog.Logger) *IconResolver {
	return &IconResolver{
		cacheDir:    cacheDir,
		defaultIcon: defaultIcon,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Resolve returns a local path for icon, which may be empty, a file path or an http(s) URL
func (r *IconResolver) Resolve(ctx context.Context, icon string) string {
	icon = strings.TrimSpace(icon)
	switch {
	case icon == "":
		return r.Default()
	case strings.HasPrefix(icon, "http://"), strings.HasPrefix(icon, "https://"):
		p, err := r.fetch(ctx, icon)
		if err != nil {
			r.logger.Warn("failed to fetch notification icon, using default", "icon", icon, "error", err)
			return r.Default()
		}
		return p
	default:
		if _, err := os.Stat(icon); err != nil {
			r.logger.Warn("notification icon not found, using default", "icon", icon, "error", err)
			return r.Default()
		}
		return icon
	}
}

// Default returns the bundled default icon, generating the placeholder on first use
func (r *IconResolver) Default() string {
	if r.defaultIcon != "" {
		return r.defaultIcon
	}
	p := filepath.Join(r.cacheDir, defaultIconName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	if err := writePNG(p, placeholder()); err != nil {
		r.logger.Warn("failed to write default icon", "path", p, "error", err)
		return ""
	}
	return p
}

func (r *IconResolver) fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(u.Path))
	isWebP := ext == ".webp"
	if isWebP || ext == "" {
		ext = ".png"
	}

	sum := sha256.Sum256([]byte(rawURL))
	dst := filepath.Join(r.cacheDir, hex.EncodeToString(sum[:8])+ext)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt == "image/webp" {
		isWebP = true
	}

	body := io.LimitReader(resp.Body, maxIconBytes)
	if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
		return "", err
	}
	if isWebP {
		img, err := webp.Decode(body)
		if err != nil {
			return "", fmt.Errorf("decode webp: %w", err)
		}
		if err := writePNG(dst, img); err != nil {
			return "", err
		}
		return dst, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(dst, data); err != nil {
		return "", err
	}
	return dst, nil
}

func writePNG(p string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".icon-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func writeAtomic(p string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), ".icon-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// placeholder draws a plain square used when no default icon is configured
func placeholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	fill := color.RGBA{R: 27, G: 38, B: 54, A: 255}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

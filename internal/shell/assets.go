package shell

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"
)

const preloadPath = "/preload.js"

// AssetOptions selects where the built-in document and preload script come from
type AssetOptions struct {
	// Embedded holds index.html and preload.js as shipped in the binary
	Embedded fs.FS
	// AssetsPath overrides Embedded with a directory on disk (development mode)
	AssetsPath string
	// PreloadPath overrides the preload script with a file on disk (development mode)
	PreloadPath string
}

// newAssetRouter builds the handler behind the Wails asset server
func newAssetRouter(opts AssetOptions, site http.Handler) http.Handler {
	assets := opts.Embedded
	if opts.AssetsPath != "" {
		assets = os.DirFS(opts.AssetsPath)
	}

	mux := http.NewServeMux()
	mux.Handle(sitePrefix, http.StripPrefix(strings.TrimSuffix(sitePrefix, "/"), site))
	mux.HandleFunc(preloadPath, func(w http.ResponseWriter, r *http.Request) {
		data, err := readPreload(opts, assets)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.ServeContent(w, r, "preload.js", time.Time{}, bytes.NewReader(data))
	})
	mux.Handle("/", noStore(http.FileServer(http.FS(assets))))
	return mux
}

func readPreload(opts AssetOptions, assets fs.FS) ([]byte, error) {
	if opts.PreloadPath != "" {
		return os.ReadFile(opts.PreloadPath)
	}
	data, err := fs.ReadFile(assets, strings.TrimPrefix(preloadPath, "/"))
	if err != nil && errors.Is(err, fs.ErrNotExist) && opts.AssetsPath != "" && opts.Embedded != nil {
		// An assets directory without its own preload script still gets the bundled one.
		return fs.ReadFile(opts.Embedded, strings.TrimPrefix(preloadPath, "/"))
	}
	return data, err
}

func noStore(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		h.ServeHTTP(w, r)
	})
}

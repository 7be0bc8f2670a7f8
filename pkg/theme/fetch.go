package theme

import (
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/podtheme/themepack/pkg/theme/errors"
)

// Asset locators are either data URLs (edited bytes inlined before
// persistence) or plain file paths into the bundle tree.

// ResolveAssetURL fetches the current bytes behind an asset locator.
func ResolveAssetURL(url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		_, data, err := DecodeDataURL(url)
		return data, err
	}
	data, err := os.ReadFile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrImageLoad, url, err)
	}
	return data, nil
}

// EncodeDataURL inlines bytes as a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and bytes.
func DecodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URL", errors.ErrImageLoad)
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, fmt.Errorf("%w: truncated data URL", errors.ErrImageLoad)
	}
	mime := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad base64 payload: %v", errors.ErrImageLoad, err)
	}
	return mime, data, nil
}

var mimeByExt = map[string]string{
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".bmp":   "image/bmp",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// MIMEForFile maps a file name to its MIME type by extension.
func MIMEForFile(name string) string {
	if m, ok := mimeByExt[strings.ToLower(path.Ext(name))]; ok {
		return m
	}
	return "application/octet-stream"
}

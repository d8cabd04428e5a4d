package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"glimpse/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// MasterMaxSize bounds the longest edge of stored images.
	MasterMaxSize = 2048
	// WebPQuality is the encode quality for stored images.
	WebPQuality = 70
)

// LocalStore writes images to a directory, re-encoded as WebP, and returns
// URLs under a base path. Content addressing keeps references stable:
// storing the same bytes twice yields the same URL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a store rooted at dir serving URLs under baseURL.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStore) Store(ctx context.Context, data []byte, contentTypeHint string) (string, error) {
	if len(data) == 0 {
		return "", models.NewValidationError("image data is empty")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", models.NewValidationError("unsupported image data")
	}
	img = downscale(img, MasterMaxSize)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: WebPQuality}); err != nil {
		return "", models.NewGatewayError(err)
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + ".webp"
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return "", models.NewGatewayError(err)
		}
	}

	return s.baseURL + "/" + name, nil
}

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// downscale shrinks img so its longest edge is at most maxSize, preserving
// aspect ratio. Images already within bounds pass through untouched.
func downscale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSize && h <= maxSize {
		return img
	}

	if w >= h {
		h = h * maxSize / w
		w = maxSize
	} else {
		w = w * maxSize / h
		h = maxSize
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/disintegration/imaging"
)

// PhotoStorage persists an encoded image and returns its public URL.
type PhotoStorage interface {
	Store(ctx context.Context, folder, name string, data []byte) (string, error)
}

// PreparedPhoto is an upload normalised to an upright JPEG.
type PreparedPhoto struct {
	Data           []byte
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
}

// Metadata describes the stored image for the photo record.
func (p *PreparedPhoto) Metadata(filename string) map[string]interface{} {
	return map[string]interface{}{
		"original_filename": filename,
		"original_width":    p.OriginalWidth,
		"original_height":   p.OriginalHeight,
		"width":             p.Width,
		"height":            p.Height,
		"bytes":             len(p.Data),
		"content_type":      "image/jpeg",
	}
}

// PreparePhoto decodes r, applies the EXIF orientation, shrinks it to fit
// within maxDimension on both sides and re-encodes it as JPEG. A zero
// maxDimension keeps the original size.
func PreparePhoto(r io.Reader, maxDimension int) (*PreparedPhoto, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	p := &PreparedPhoto{OriginalWidth: bounds.Dx(), OriginalHeight: bounds.Dy()}

	if maxDimension > 0 && (bounds.Dx() > maxDimension || bounds.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	p.Data = buf.Bytes()
	p.Width = img.Bounds().Dx()
	p.Height = img.Bounds().Dy()
	return p, nil
}

// CloudinaryStorage uploads photos to Cloudinary under a base folder.
type CloudinaryStorage struct {
	cld        *cloudinary.Cloudinary
	baseFolder string
}

func NewCloudinaryStorage(cloudName, apiKey, apiSecret, baseFolder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, baseFolder: baseFolder}, nil
}

func (s *CloudinaryStorage) Store(ctx context.Context, folder, name string, data []byte) (string, error) {
	overwrite := false
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       path.Join(s.baseFolder, folder),
		PublicID:     name,
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", res.Error.Message)
	}
	log.Printf("☁️ Uploaded photo to Cloudinary: %s", res.SecureURL)
	return res.SecureURL, nil
}

// LocalStorage writes photos below dir and serves them from publicPath.
type LocalStorage struct {
	dir        string
	publicPath string
}

func NewLocalStorage(dir, publicPath string) *LocalStorage {
	return &LocalStorage{dir: dir, publicPath: publicPath}
}

func (s *LocalStorage) Store(_ context.Context, folder, name string, data []byte) (string, error) {
	target := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	file := name + ".jpg"
	if err := os.WriteFile(filepath.Join(target, file), data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return path.Join(s.publicPath, folder, file), nil
}

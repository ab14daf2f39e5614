package imagepipeline

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nfnt/resize"
)

const (
	tempDeleteAttempts = 5
	tempDeleteBackoff  = 50 * time.Millisecond
)

// fetchAndScale downloads url to a temp file, decodes and scales it to
// targetWidth preserving aspect ratio, writes the result to destPath, and
// removes the temp file with a short retry loop (spec §4.9: "filesystem
// locks may linger momentarily").
func fetchAndScale(url, destPath string, targetWidth uint) error {
	tmpPath, err := download(url)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer deleteWithRetry(tmpPath)

	if err := scaleAndSave(tmpPath, destPath, targetWidth); err != nil {
		return fmt.Errorf("scale: %w", err)
	}
	return nil
}

func download(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching image", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "imagepipeline-*.tmp")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func scaleAndSave(srcPath, destPath string, targetWidth uint) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	scaled := resize.Resize(targetWidth, 0, img, resize.Lanczos3)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	out, err := os.CreateTemp(filepath.Dir(destPath), ".scaled-*")
	if err != nil {
		return err
	}
	outName := out.Name()

	encodeErr := encode(out, scaled, format)
	out.Close()
	if encodeErr != nil {
		os.Remove(outName)
		return fmt.Errorf("encode image: %w", encodeErr)
	}
	if err := os.Rename(outName, destPath); err != nil {
		os.Remove(outName)
		return err
	}
	return nil
}

func encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return pngEncode(w, img)
	default:
		return jpegEncode(w, img)
	}
}

// deleteWithRetry removes path, retrying a few times since the scale step
// may hold the file open on some platforms for a moment after Close.
func deleteWithRetry(path string) {
	var err error
	for attempt := 0; attempt < tempDeleteAttempts; attempt++ {
		if err = os.Remove(path); err == nil || os.IsNotExist(err) {
			return
		}
		time.Sleep(tempDeleteBackoff)
	}
}

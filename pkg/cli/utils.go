package cli

import (
	"bufio"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/blurkit/blurkit/pkg/pixbuf"
)

// PromptLine displays a prompt and reads a full line of input from the user.
// The returned string is trimmed of surrounding whitespace.
func PromptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptLineOrFzf reads a line from stdin; a single "/" invokes fzf for file
// selection instead. Reading the whole line preserves paths with spaces.
func PromptLineOrFzf(prompt string) (string, error) {
	line, err := PromptLine(prompt)
	if err != nil {
		return "", err
	}
	if line == "/" {
		sel, selErr := SelectFileWithFzf(".")
		if selErr == nil && sel != "" {
			fmt.Printf(" [fzf] %s\n", sel)
			return sel, nil
		}
		return PromptLine(prompt)
	}
	return line, nil
}

// LoadImage decodes an image file into a pixel buffer. PNG/JPEG/GIF decode
// via the stdlib; BMP/TIFF/WebP via golang.org/x/image. Returns the buffer
// and the container format name reported by the decoder.
func LoadImage(path string) (*pixbuf.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	buf := pixbuf.FromNRGBA(toNRGBA(img))
	if err := buf.Validate(); err != nil {
		return nil, "", err
	}
	return buf, format, nil
}

// SaveImage writes a buffer to disk; the format is inferred from the file
// extension, defaulting to PNG.
func SaveImage(path string, buf *pixbuf.Buffer) error {
	if buf == nil {
		return fmt.Errorf("no image to save")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img := buf.ToNRGBA()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 92})
	case ".gif":
		return gif.Encode(f, img, nil)
	default:
		return png.Encode(f, img)
	}
}

// BufferInfo returns a short description for display after load/blur.
func BufferInfo(buf *pixbuf.Buffer, format string) string {
	if buf == nil {
		return "no image"
	}
	if format == "" {
		format = "unknown"
	}
	return fmt.Sprintf("Format: %s, Width: %d, Height: %d, Channels: %d",
		format, buf.Width, buf.Height, buf.Channels)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			i := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[i+0] = uint8(r >> 8)
			out.Pix[i+1] = uint8(g >> 8)
			out.Pix[i+2] = uint8(bl >> 8)
			out.Pix[i+3] = uint8(a >> 8)
		}
	}
	return out
}

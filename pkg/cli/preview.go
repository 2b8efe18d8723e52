package cli

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/image/draw"

	"github.com/blurkit/blurkit/pkg/pixbuf"
)

// Terminal preview helper for Kitty and iTerm2 inline-image protocols.
//
// Detection order: kitty graphics protocol (KITTY_WINDOW_ID or a
// kitty-compatible TERM), then the iTerm2-style OSC 1337 inline sequence
// (iTerm2, WezTerm, Warp, VSCode and friends), then chafa on PATH as a
// block-character fallback. PREVIEW_BACKEND forces a specific backend.
//
// Sending binary escape sequences to stdout is expected in this
// terminal-only preview mode.

var previewDebug bool

func debugf(format string, args ...interface{}) {
	if previewDebug {
		fmt.Fprintf(os.Stderr, "blurkit-preview: "+format+"\n", args...)
	}
}

func isKitty() bool {
	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}

// isInlineImageCapable detects terminals implementing the iTerm2-style
// OSC 1337 inline image protocol.
func isInlineImageCapable() bool {
	switch os.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "Warp", "Hyper", "vscode", "VSCode", "Tabby":
		return true
	}
	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "wezterm") || strings.Contains(term, "warp")
}

func hasChafa() bool {
	if os.Getenv("NO_CHAFA") == "1" {
		return false
	}
	_, err := exec.LookPath("chafa")
	return err == nil
}

// PreviewSupported reports whether the running terminal can likely show an
// inline preview through any backend.
func PreviewSupported() bool {
	supported := isKitty() || isInlineImageCapable() || hasChafa()
	debugf("PreviewSupported -> %v (kitty=%v inline=%v chafa=%v)",
		supported, isKitty(), isInlineImageCapable(), hasChafa())
	return supported
}

// previewMaxPx bounds the preview payload; larger buffers are downscaled
// before encoding so slider-drag previews stay snappy.
const (
	previewMaxW = 640
	previewMaxH = 400
)

// scaleForPreview fits img inside previewMaxW x previewMaxH preserving the
// aspect ratio. Images that already fit are returned unchanged; downscaling
// uses approximate bilinear filtering, which is plenty for a preview.
func scaleForPreview(img *image.NRGBA) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w <= previewMaxW && h <= previewMaxH {
		return img
	}
	scale := float64(previewMaxW) / float64(w)
	if s := float64(previewMaxH) / float64(h); s < scale {
		scale = s
	}
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	out := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

// PreviewBuffer renders a pixel buffer inline in the terminal.
func PreviewBuffer(buf *pixbuf.Buffer) error {
	if buf == nil {
		return fmt.Errorf("nil buffer")
	}
	img := scaleForPreview(buf.ToNRGBA())
	var blob bytes.Buffer
	if err := png.Encode(&blob, img); err != nil {
		return fmt.Errorf("png encode failed: %w", err)
	}
	return previewBytes(blob.Bytes())
}

func previewBytes(blob []byte) error {
	if backend := strings.ToLower(os.Getenv("PREVIEW_BACKEND")); backend != "" {
		debugf("PREVIEW_BACKEND override: %s", backend)
		switch backend {
		case "kitty":
			return sendKittyImage(blob)
		case "inline", "iterm", "wezterm":
			return sendInlineImage(blob)
		case "chafa":
			return sendChafaImage(blob)
		}
		debugf("unknown PREVIEW_BACKEND value: %s", backend)
	}

	if isKitty() {
		if err := sendKittyImage(blob); err == nil {
			return nil
		} else {
			debugf("kitty protocol failed: %v", err)
		}
	}
	if isInlineImageCapable() {
		if err := sendInlineImage(blob); err == nil {
			return nil
		} else {
			debugf("inline protocol failed: %v", err)
		}
	}
	if hasChafa() {
		return sendChafaImage(blob)
	}
	return fmt.Errorf("no preview protocol matched")
}

// sendKittyImage transmits PNG bytes via the kitty graphics protocol,
// chunking the base64 payload into <=4096-byte chunks as the protocol
// requires. q=2
// suppresses terminal responses, f=100 marks the payload as PNG.
func sendKittyImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("no data")
	}
	enc := base64.StdEncoding.EncodeToString(data)
	const chunkSize = 4096

	first := true
	for pos := 0; pos < len(enc); pos += chunkSize {
		end := pos + chunkSize
		if end > len(enc) {
			end = len(enc)
		}
		chunk := enc[pos:end]
		mVal := "1"
		if end == len(enc) {
			mVal = "0"
		}
		var seq string
		if first {
			seq = fmt.Sprintf("\x1b_Ga=T,f=100,t=d,q=2,m=%s;%s\x1b\\", mVal, chunk)
			first = false
		} else {
			seq = "\x1b_Gm=" + mVal + ";" + chunk + "\x1b\\"
		}
		if _, err := os.Stdout.WriteString(seq); err != nil {
			return err
		}
	}
	fmt.Println()
	return nil
}

// sendInlineImage emits the iTerm2-style OSC 1337 inline file sequence.
func sendInlineImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("no data")
	}
	enc := base64.StdEncoding.EncodeToString(data)
	seq := fmt.Sprintf("\x1b]1337;File=name=preview.png;inline=1;size=%d:%s\a", len(data), enc)
	_, err := os.Stdout.WriteString(seq)
	fmt.Println()
	return err
}

// sendChafaImage pipes PNG bytes through chafa for a block-character
// rendering that works in most terminals.
func sendChafaImage(data []byte) error {
	if _, err := exec.LookPath("chafa"); err != nil {
		return fmt.Errorf("chafa not found in PATH: %w", err)
	}
	cmd := exec.Command("chafa", "--fill=block", "--symbols=block", "-")
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("chafa failed: %w", err)
	}
	fmt.Println()
	return nil
}

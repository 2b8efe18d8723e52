package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/blurkit/blurkit/pkg/cache"
	"github.com/blurkit/blurkit/pkg/pixbuf"
	"github.com/blurkit/blurkit/pkg/processor"
)

func usage() {
	fmt.Println("Commands available:")
	fmt.Println("  b  - blur the current image (interactive intensity)")
	fmt.Println("  o  - open another image at runtime")
	fmt.Println("  s  - save current result")
	fmt.Println("  p  - preview current result")
	fmt.Println("  i  - show image info")
	fmt.Println("  c  - show cache statistics")
	fmt.Println("  x  - clear the result cache")
	fmt.Println("  u  - check for updates")
	fmt.Println("  h  - show this help message")
	fmt.Println("  q  - quit")
}

// session holds the interactive state: the loaded source, the most recent
// blur result, and the id of a full-quality request still in flight.
type session struct {
	proc  *processor.Processor
	cache *cache.Cache

	srcPath string
	format  string
	src     *pixbuf.Buffer
	result  *pixbuf.Buffer

	results     chan processor.Result
	pendingFull uint64
}

// RunCLI drives the interactive blur session.
func RunCLI() {
	cfg := LoadConfig()

	resultCache, err := cache.New(cfg.CacheEntries, cfg.CacheBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid cache configuration, using defaults: %v\n", err)
		resultCache, _ = cache.New(32, 256<<20)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if previewDebug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	proc, err := processor.New(processor.Config{
		MaxWidth:  pixbuf.MaxDim,
		MaxHeight: pixbuf.MaxDim,
		Threads:   cfg.Threads,
		Cache:     resultCache,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start blur processor: %v\n", err)
		os.Exit(1)
	}

	s := &session{
		proc:    proc,
		cache:   resultCache,
		results: make(chan processor.Result, 16),
	}

	if len(os.Args) >= 2 {
		s.open(os.Args[1])
	}

	fmt.Println("blurkit - terminal image blur")
	usage()

	for {
		line, err := PromptLine("> ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "read input error: %v\n", err)
			s.shutdown()
			return
		}
		if line == "" {
			continue
		}
		switch line[0] {
		case 'b':
			s.blurInteractive()
		case 'o':
			path, perr := PromptLineOrFzf("Enter path to image (or / for fzf): ")
			if perr != nil || path == "" {
				fmt.Println("open cancelled")
				continue
			}
			s.open(path)
		case 's':
			out := s.result
			if out == nil {
				out = s.src
			}
			if out == nil {
				fmt.Println("No image loaded.")
				continue
			}
			name, _ := PromptLine("Enter output filename: ")
			if name == "" {
				fmt.Println("no filename provided")
				continue
			}
			if err := SaveImage(name, out); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write image: %v\n", err)
				continue
			}
			fmt.Printf("Saved to %s\n", name)
		case 'p':
			out := s.result
			if out == nil {
				out = s.src
			}
			if out == nil {
				fmt.Println("No image loaded.")
				continue
			}
			if err := PreviewBuffer(out); err != nil {
				fmt.Fprintf(os.Stderr, "preview failed: %v\n", err)
			}
		case 'i':
			if s.srcPath != "" {
				fmt.Printf("File: %s\n", s.srcPath)
			}
			fmt.Println(BufferInfo(s.src, s.format))
		case 'c':
			st := s.cache.Stats()
			fmt.Printf("Cache: %d entries, %.1f MiB, %d hits, %d misses, %d evictions\n",
				st.Entries, float64(st.Bytes)/(1<<20), st.Hits, st.Misses, st.Evictions)
		case 'x':
			s.cache.Clear()
			fmt.Println("cache cleared")
		case 'u':
			if err := CheckForUpdates(); err != nil {
				fmt.Fprintf(os.Stderr, "update check error: %v\n", err)
			}
		case 'h':
			usage()
		case 'q':
			fmt.Println("Exiting...")
			s.shutdown()
			return
		}
	}
}

// open loads a new source image, dropping cached results derived from the
// previous one.
func (s *session) open(path string) {
	buf, format, err := LoadImage(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read image %s: %v\n", path, err)
		return
	}
	if s.src != nil {
		s.cache.Remove(s.src.Hash())
	}
	s.cancelPending()
	s.src = buf
	s.srcPath = path
	s.format = format
	s.result = nil
	fmt.Printf("Opened %s\n", path)
	if PreviewSupported() {
		_ = PreviewBuffer(buf)
	}
	fmt.Println(BufferInfo(buf, format))
}

// blurInteractive runs the slider-style loop: every entered intensity gets
// an immediate progressive-quality preview, a full-quality pass is started
// in the background, and entering a new value before it lands cancels it.
// Only the latest intensity matters.
func (s *session) blurInteractive() {
	if s.src == nil {
		fmt.Println("No image loaded. Press 'o' to open an image first.")
		return
	}
	for {
		line, err := PromptLine("intensity 0-10 (blank to finalize): ")
		if err != nil {
			return
		}
		if line == "" {
			break
		}
		intensity, perr := strconv.ParseFloat(line, 64)
		if perr != nil {
			fmt.Println("not a number")
			continue
		}

		s.cancelPending()

		// quick progressive preview first
		id, err := s.proc.ApplyAsync(s.src, intensity, true, func(r processor.Result) { s.results <- r })
		if err != nil {
			fmt.Fprintf(os.Stderr, "blur rejected: %v\n", err)
			continue
		}
		r, ok := s.waitFor(id)
		if !ok {
			continue
		}
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "blur failed: %v\n", r.Err)
			continue
		}
		s.result = r.Buffer
		if PreviewSupported() {
			_ = PreviewBuffer(r.Buffer)
		}

		// full-quality pass in the background; superseded by the next input
		fullID, err := s.proc.ApplyAsync(s.src, intensity, false, func(r processor.Result) { s.results <- r })
		if err != nil {
			fmt.Fprintf(os.Stderr, "blur rejected: %v\n", err)
			continue
		}
		s.pendingFull = fullID
	}

	// finalize: wait for the last full-quality result, if any
	if s.pendingFull != 0 {
		if r, ok := s.waitFor(s.pendingFull); ok && r.Err == nil {
			s.result = r.Buffer
			if PreviewSupported() {
				_ = PreviewBuffer(r.Buffer)
			}
			if r.FromCache {
				fmt.Println("(served from cache)")
			}
		}
		s.pendingFull = 0
	}
}

// waitFor drains the result channel until the given request id arrives.
// Results for superseded requests are discarded.
func (s *session) waitFor(id uint64) (processor.Result, bool) {
	for {
		select {
		case r := <-s.results:
			if r.RequestID == id {
				return r, true
			}
		case <-time.After(2 * time.Minute):
			fmt.Fprintln(os.Stderr, "timed out waiting for blur result")
			return processor.Result{}, false
		}
	}
}

func (s *session) cancelPending() {
	if s.pendingFull != 0 {
		s.proc.Cancel(s.pendingFull)
		s.pendingFull = 0
	}
}

// shutdown cancels in-flight work and closes the processor; Close requires
// no outstanding requests.
func (s *session) shutdown() {
	s.cancelPending()
	for s.proc.Outstanding() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	s.proc.Close()
}

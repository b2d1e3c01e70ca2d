// Package videocodec drives an external ffmpeg/ffprobe subprocess to encode
// QR frame sequences into an MP4 container and to extract individual frames
// back out (C3, spec §4.3). The subprocess-driving style is grounded on the
// other_examples transcoder reference (stdout/stderr pipes, Start+Wait,
// argument-quoting log line); ffmpeg/ffprobe themselves are external
// dependencies the spec names directly, not a Go library.
package videocodec

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Prober detects whether ffmpeg/ffprobe binaries are available on PATH, so
// callers can fall back to the file store back-end (spec §4.3: "video
// back-end is optional; absence of ffmpeg must not be fatal").
type Prober struct {
	FFmpegPath  string
	FFprobePath string

	once      sync.Once
	available bool
	version   string
}

// DefaultProber looks for "ffmpeg" and "ffprobe" on PATH.
func DefaultProber() *Prober {
	return &Prober{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Available reports whether both binaries resolve and respond to -version.
// The result is cached after the first probe.
func (p *Prober) Available(ctx context.Context) bool {
	p.once.Do(func() { p.probe(ctx) })
	return p.available
}

// Version returns the ffmpeg -version banner's first line, once probed.
func (p *Prober) Version() string {
	return p.version
}

func (p *Prober) probe(ctx context.Context) {
	if _, err := exec.LookPath(p.FFmpegPath); err != nil {
		return
	}
	if _, err := exec.LookPath(p.FFprobePath); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.FFmpegPath, "-version").Output()
	if err != nil {
		return
	}
	lines := strings.SplitN(string(out), "\n", 2)
	p.version = strings.TrimSpace(lines[0])
	p.available = true
}

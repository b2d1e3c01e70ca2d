package videocodec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// EncodeOptions configures a single segment encode (spec §4.3).
type EncodeOptions struct {
	FFmpegPath string
	FPS        int
	// CRF is the x264 constant-rate-factor quality knob; lower is higher
	// quality. Frames are synthetic QR codes so a low CRF keeps module
	// edges crisp enough for decoding.
	CRF int
}

// DefaultEncodeOptions mirrors spec §4.3's defaults.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{FFmpegPath: "ffmpeg", FPS: 30, CRF: 18}
}

// Encode pipes frames to ffmpeg as raw RGBA video over stdin and writes an
// H.264 MP4 to outPath. All frames must share dimensions; the first frame's
// bounds set the -s argument.
func Encode(ctx context.Context, frames []*image.RGBA, outPath string, opts EncodeOptions) error {
	if len(frames) == 0 {
		return memory.NewCodecError(memory.CodecErrHeaderInvalid, "no frames to encode")
	}
	if opts.FFmpegPath == "" {
		opts = DefaultEncodeOptions()
	}
	bounds := frames[0].Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.Itoa(opts.FPS),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outPath,
	}

	cmd := exec.CommandContext(ctx, opts.FFmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("videocodec: stdin pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("videocodec: start ffmpeg: %w", err)
	}

	writeErr := writeFrames(stdin, frames)
	stdin.Close()

	if waitErr := cmd.Wait(); waitErr != nil {
		return fmt.Errorf("videocodec: ffmpeg exited: %w: %s", waitErr, stderr.String())
	}
	if writeErr != nil {
		return fmt.Errorf("videocodec: writing frames: %w", writeErr)
	}
	return nil
}

func writeFrames(w io.Writer, frames []*image.RGBA) error {
	bw := bufio.NewWriter(w)
	for _, f := range frames {
		if _, err := bw.Write(f.Pix); err != nil {
			return err
		}
	}
	return bw.Flush()
}

package videocodec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// defaultGuardFrames is how many frames before the requested one ffmpeg is
// asked to decode. Fast seek (-ss before -i) only lands on the nearest
// preceding keyframe, which is frequently one or more frames earlier than
// requested; decoding forward from there and discarding the guard frames
// avoids returning the wrong frame (the "off-by-one hazard" of fast seek).
const defaultGuardFrames = 8

// seekPlan is the pre-computed ffmpeg invocation shape for extracting a
// single frame. Kept as a pure function of (frameIndex, fps, guardFrames) so
// it can be unit tested without invoking ffmpeg.
type seekPlan struct {
	seekSeconds  float64
	skipFrames   int
	decodeFrames int
}

func planSeek(frameIndex uint32, fps int, guardFrames uint32) seekPlan {
	if fps <= 0 {
		fps = DefaultEncodeOptions().FPS
	}
	if guardFrames == 0 {
		guardFrames = defaultGuardFrames
	}
	var guardStart uint32
	if frameIndex > guardFrames {
		guardStart = frameIndex - guardFrames
	}
	skip := frameIndex - guardStart
	return seekPlan{
		seekSeconds:  float64(guardStart) / float64(fps),
		skipFrames:   int(skip),
		decodeFrames: int(skip) + 1,
	}
}

// ExtractOptions configures frame extraction.
type ExtractOptions struct {
	FFmpegPath string
	FPS        int
	// FrameWidth/FrameHeight must match the dimensions frames were encoded
	// at; rawvideo output has no header to recover them from.
	FrameWidth  int
	FrameHeight int
	GuardFrames uint32
}

// ExtractFrame decodes the single frame at frameIndex out of an MP4 written
// by Encode. C4 (frame index) supplies the nearest preceding keyframe so
// callers can pass a tighter GuardFrames when the gap to the keyframe is
// known to be small.
func ExtractFrame(ctx context.Context, videoPath string, frameIndex uint32, opts ExtractOptions) (*image.RGBA, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FrameWidth == 0 || opts.FrameHeight == 0 {
		return nil, memory.NewCodecError(memory.CodecErrHeaderInvalid, "frame dimensions required for rawvideo extraction")
	}

	plan := planSeek(frameIndex, opts.FPS, opts.GuardFrames)
	frameBytes := opts.FrameWidth * opts.FrameHeight * 4

	args := []string{
		"-ss", strconv.FormatFloat(plan.seekSeconds, 'f', 6, 64),
		"-i", videoPath,
		"-vframes", strconv.Itoa(plan.decodeFrames),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, opts.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("videocodec: extract frame %d: %w: %s", frameIndex, err, stderr.String())
	}

	needed := (plan.skipFrames + 1) * frameBytes
	if stdout.Len() < needed {
		return nil, memory.NewCodecError(memory.CodecErrChunkMissing,
			fmt.Sprintf("expected %d decoded frames before target, got %d bytes", plan.decodeFrames, stdout.Len()))
	}

	start := plan.skipFrames * frameBytes
	pix := make([]byte, frameBytes)
	if _, err := io.ReadFull(bytes.NewReader(stdout.Bytes()[start:start+frameBytes]), pix); err != nil {
		return nil, memory.NewCodecError(memory.CodecErrChunkCorrupt, "short read on target frame: "+err.Error())
	}

	img := &image.RGBA{
		Pix:    pix,
		Stride: opts.FrameWidth * 4,
		Rect:   image.Rect(0, 0, opts.FrameWidth, opts.FrameHeight),
	}
	return img, nil
}

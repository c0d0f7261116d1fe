package renderer

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/richinsley/glowsaver/inputs"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Frame is a single rendered frame's RGBA pixels, bottom row first.
type Frame struct {
	Pixels []byte
	PTS    int64
}

// Encoder consumes raw RGBA frames of width x height at fps from frames
// until EOF.
type Encoder func(width, height, fps int, frames io.Reader) error

// RecordOptions configures RunOffscreen.
type RecordOptions struct {
	Duration float64
	FPS      int
	// Encoder receives the frame stream. Use FFmpegEncoder for video files.
	Encoder Encoder
}

const numBuffers = 3

// FFmpegEncoder returns an Encoder that pipes raw frames into ffmpeg and
// writes output. An empty ffmpegPath uses ffmpeg from PATH.
func FFmpegEncoder(output, ffmpegPath string) Encoder {
	return func(width, height, fps int, frames io.Reader) error {
		inputArgs := ffmpeg.KwArgs{
			"format":    "rawvideo",
			"pix_fmt":   "rgba",
			"s":         fmt.Sprintf("%dx%d", width, height),
			"framerate": fps,
		}
		// GL rows are bottom-up.
		outputArgs := ffmpeg.KwArgs{
			"vf":      "vflip",
			"pix_fmt": "yuv420p",
		}
		cmd := ffmpeg.Input("pipe:", inputArgs).
			Output(output, outputArgs).
			OverWriteOutput().WithInput(frames).ErrorToStdOut()
		if ffmpegPath != "" {
			cmd = cmd.SetFfmpegPath(ffmpegPath)
		}
		return cmd.Run()
	}
}

// runEncoder is the consumer. It streams frames from frameChan into the encoder.
func runEncoder(enc Encoder, width, height, fps int, frameChan <-chan *Frame, doneChan chan<- error) {
	pipeReader, pipeWriter := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		err := enc(width, height, fps, pipeReader)
		// Unblock the writer if the encoder stopped reading early.
		pipeReader.CloseWithError(fmt.Errorf("encoder exited: %v", err))
		errc <- err
	}()

	var writeErr error
	for frame := range frameChan {
		if writeErr != nil {
			continue
		}
		if _, err := pipeWriter.Write(frame.Pixels); err != nil {
			log.Printf("Error writing frame %d to encoder: %v", frame.PTS, err)
			writeErr = err
		}
	}
	pipeWriter.Close()

	err := <-errc
	if err == nil && writeErr != nil {
		err = writeErr
	}
	doneChan <- err
}

// RunOffscreen renders Duration*FPS frames at a fixed time step, reads each
// back and sends it to the encoder. iTime starts at zero for the recording.
func (r *Renderer) RunOffscreen(opts RecordOptions) error {
	if opts.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", opts.FPS)
	}
	if opts.Encoder == nil {
		return fmt.Errorf("no encoder configured")
	}
	width, height := r.width, r.height
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}

	log.Println("Starting in record mode...")
	frameChan := make(chan *Frame, numBuffers)
	encoderDoneChan := make(chan error, 1)
	go runEncoder(opts.Encoder, width, height, opts.FPS, frameChan, encoderDoneChan)

	totalFrames := int(opts.Duration * float64(opts.FPS))
	timeStep := time.Second / time.Duration(opts.FPS)
	base := time.Now()
	clock := inputs.NewClock(base)

	for i := 0; i < totalFrames; i++ {
		now := base.Add(time.Duration(i) * timeStep)
		r.draw(clock, now)

		pixels := make([]byte, width*height*4)
		r.gl.ReadPixels(0, 0, int32(width), int32(height), pixels)
		frameChan <- &Frame{Pixels: pixels, PTS: int64(i)}

		r.present(now)
	}

	close(frameChan)
	return <-encoderDoneChan
}

/*
Example that captures the screen at a fixed rate and runs object detection
and tracking on the captures, writing an annotated video file and optional
JSON results.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	objtrail "github.com/objtrail/go-objtrail"
	"github.com/objtrail/go-objtrail/detect"
	"github.com/objtrail/go-objtrail/render"
	"github.com/objtrail/go-objtrail/store"
	"github.com/objtrail/go-objtrail/tracker"
	"github.com/vova616/screenshot"
	"gocv.io/x/gocv"
)

// screenSource captures frames of the active screen at a fixed rate
type screenSource struct {
	interval time.Duration
	frames   int
	max      int
	mat      gocv.Mat
	last     time.Time
}

func newScreenSource(fps float64, maxFrames int) *screenSource {
	return &screenSource{
		interval: time.Duration(float64(time.Second) / fps),
		max:      maxFrames,
		mat:      gocv.NewMat(),
	}
}

// Next grabs the next screen capture, io.EOF signals the frame limit was
// reached
func (s *screenSource) Next() (objtrail.Frame, error) {

	if s.frames >= s.max {
		return nil, io.EOF
	}

	// pace captures to the target frame rate
	if !s.last.IsZero() {
		if wait := s.interval - time.Since(s.last); wait > 0 {
			time.Sleep(wait)
		}
	}

	img, err := screenshot.CaptureScreen()

	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}

	s.last = time.Now()
	s.frames++

	rgba, err := gocv.ImageToMatRGBA(img)

	if err != nil {
		return nil, fmt.Errorf("convert capture: %w", err)
	}

	defer rgba.Close()

	gocv.CvtColor(rgba, &s.mat, gocv.ColorRGBAToBGR)

	return &s.mat, nil
}

func (s *screenSource) Close() {
	s.mat.Close()
}

// renderSink annotates the captured frame and writes it to the output video
type renderSink struct {
	src    *screenSource
	writer *gocv.VideoWriter
	trails *objtrail.TrailStore
	font   render.Font
	style  render.TrailStyle
}

func (r *renderSink) Consume(res objtrail.FrameResult) error {

	render.Trail(&r.src.mat, res.Detections, r.trails, r.style)
	render.DetectionBoxes(&r.src.mat, res.Detections, r.font, 2)

	if err := r.writer.Write(r.src.mat); err != nil {
		return fmt.Errorf("write output frame %d: %w", res.Frame, err)
	}

	return nil
}

// newDetector creates a YOLOv8 detector for the given model file, using
// the embedded COCO labels unless a label file is provided
func newDetector(modelFile, labelFile string) (detect.Detector, error) {

	labels := detect.COCOLabels()

	if labelFile != "" {
		var err error
		labels, err = detect.LoadLabels(labelFile)

		if err != nil {
			return nil, fmt.Errorf("error loading model labels: %w", err)
		}
	}

	params := detect.YOLOv8COCOParams()
	params.Labels = labels
	return detect.NewYOLOv8(modelFile, params)
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8s.onnx", "ONNX exported YOLOv8 model file")
	labelFile := flag.String("l", "", "Text file containing model labels, defaults to the built in COCO labels")
	saveFile := flag.String("o", "../data/screen-out.mp4", "The output video file with object detection markers")
	jsonFile := flag.String("j", "", "Optional output JSON file with per frame detection results")
	algorithm := flag.String("t", "centroid", "Tracking algorithm [centroid|iou|byte]")
	maxFrames := flag.Int("n", 300, "Number of screen frames to capture")
	fps := flag.Float64("fps", 10, "Frame rate to capture the screen at")

	flag.Parse()

	detector, err := newDetector(*modelFile, *labelFile)

	if err != nil {
		log.Fatal("Error initializing detector: ", err)
	}

	defer detector.Close()

	// probe the screen size for the output video dimensions
	screenRect, err := screenshot.ScreenRect()

	if err != nil {
		log.Fatal("Error querying screen size: ", err)
	}

	width := screenRect.Dx()
	height := screenRect.Dy()

	log.Printf("Capturing %d frames of %dx%d screen at %.1f FPS\n",
		*maxFrames, width, height, *fps)

	writer, err := gocv.VideoWriterFile(*saveFile, "mp4v", *fps,
		width, height, true)

	if err != nil {
		log.Fatal("Error opening video writer: ", err)
	}

	defer writer.Close()

	src := newScreenSource(*fps, *maxFrames)
	defer src.Close()

	var trk objtrail.Tracker

	switch *algorithm {
	case "iou":
		trkParams := tracker.DefaultParams()
		trkParams.Algorithm = tracker.IoU
		trk = tracker.NewBlobTracker(trkParams)

	case "byte":
		trk = tracker.NewByteTracker(tracker.DefaultByteParams())

	default:
		trk = tracker.NewBlobTracker(tracker.DefaultParams())
	}

	pipeline := objtrail.NewPipeline(detector, objtrail.Config{
		Tracker: trk,
	})

	session := objtrail.NewSession(pipeline)

	rec := store.NewRecorder()

	sink := &renderSink{
		src:    src,
		writer: writer,
		trails: pipeline.Trails(),
		font:   render.DefaultFont(),
		style:  render.DefaultTrailStyle(),
	}

	sp := objtrail.NewSequenceProcessor(session)

	if err := sp.Run(context.Background(), src, sink, rec); err != nil {
		log.Fatal("Error processing screen captures: ", err)
	}

	if *jsonFile != "" {
		if err := rec.SaveJSON(*jsonFile); err != nil {
			log.Fatal("Error saving JSON results: ", err)
		}
	}

	stats := sp.Stats()

	log.Printf("Processed %d frames: mean=%.2fms, p50=%.2fms, p95=%.2fms\n",
		stats.Frames, stats.Mean, stats.P50, stats.P95)
}

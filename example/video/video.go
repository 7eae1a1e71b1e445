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
	"gocv.io/x/gocv"
)

// videoSource yields the frames of a video file in order
type videoSource struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

func newVideoSource(vidFile string) (*videoSource, error) {

	capture, err := gocv.OpenVideoCapture(vidFile)

	if err != nil {
		return nil, fmt.Errorf("error opening video file: %w", err)
	}

	return &videoSource{
		capture: capture,
		frame:   gocv.NewMat(),
	}, nil
}

// Next reads the next video frame, io.EOF signals the end of the video
func (s *videoSource) Next() (objtrail.Frame, error) {

	for {
		if ok := s.capture.Read(&s.frame); !ok {
			return nil, io.EOF
		}

		if !s.frame.Empty() {
			return &s.frame, nil
		}
	}
}

func (s *videoSource) Close() {
	s.frame.Close()
	s.capture.Close()
}

// FPS returns the frame rate reported by the video container, falling
// back to 30 when the container does not report one
func (s *videoSource) FPS() float64 {

	fps := s.capture.Get(gocv.VideoCaptureFPS)

	if fps <= 0 {
		fps = 30
	}

	return fps
}

// Dims returns the frame size reported by the video container
func (s *videoSource) Dims() (width, height int) {
	return int(s.capture.Get(gocv.VideoCaptureFrameWidth)),
		int(s.capture.Get(gocv.VideoCaptureFrameHeight))
}

// renderSink annotates each processed frame and writes it to the output
// video
type renderSink struct {
	src    *videoSource
	writer *gocv.VideoWriter
	trails *objtrail.TrailStore
	font   render.Font
	style  render.TrailStyle
	seg    bool
}

func (r *renderSink) Consume(res objtrail.FrameResult) error {

	if r.seg {
		render.SegmentMasks(&r.src.frame, res.Detections, 0.5)
	}

	render.Trail(&r.src.frame, res.Detections, r.trails, r.style)
	render.DetectionBoxes(&r.src.frame, res.Detections, r.font, 2)

	if err := r.writer.Write(r.src.frame); err != nil {
		return fmt.Errorf("write output frame %d: %w", res.Frame, err)
	}

	return nil
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8s.onnx", "ONNX exported YOLOv8 model file")
	vidFile := flag.String("v", "../data/traffic.mp4", "Video file to run object detection and tracking on")
	labelFile := flag.String("l", "", "Text file containing model labels, defaults to the built in COCO labels")
	saveFile := flag.String("o", "../data/traffic-out.mp4", "The output video file with object detection markers")
	jsonFile := flag.String("j", "../data/traffic-out.json", "The output JSON file with per frame detection results")
	dbFile := flag.String("d", "", "Optional SQLite database file to persist results to")
	algorithm := flag.String("t", "centroid", "Tracking algorithm [centroid|iou|byte]")
	segModel := flag.Bool("seg", false, "Model is an instance segmentation model, render mask overlays")

	flag.Parse()

	detector, err := newDetector(*modelFile, *labelFile, *segModel)

	if err != nil {
		log.Fatal("Error initializing detector: ", err)
	}

	defer detector.Close()

	src, err := newVideoSource(*vidFile)

	if err != nil {
		log.Fatal("Error opening video: ", err)
	}

	defer src.Close()

	width, height := src.Dims()

	writer, err := gocv.VideoWriterFile(*saveFile, "mp4v", src.FPS(),
		width, height, true)

	if err != nil {
		log.Fatal("Error opening video writer: ", err)
	}

	defer writer.Close()

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
	runID := session.Start()

	log.Printf("Processing run %s\n", runID)

	rec := store.NewRecorder()

	sinks := []objtrail.ResultSink{
		&renderSink{
			src:    src,
			writer: writer,
			trails: pipeline.Trails(),
			font:   render.DefaultFont(),
			style:  render.DefaultTrailStyle(),
			seg:    *segModel,
		},
		rec,
	}

	if *dbFile != "" {
		st, err := store.OpenSQLite(*dbFile)

		if err != nil {
			log.Fatal("Error opening result store: ", err)
		}

		defer st.Close()

		err = st.SaveRun(store.Run{
			ID:        runID.String(),
			Source:    *vidFile,
			StartedAt: time.Now(),
		})

		if err != nil {
			log.Fatal("Error saving run: ", err)
		}

		sinks = append(sinks, st.Sink(runID.String()))
	}

	sp := objtrail.NewSequenceProcessor(session)

	if err := sp.Run(context.Background(), src, sinks...); err != nil {
		log.Fatal("Error processing video: ", err)
	}

	if err := rec.SaveJSON(*jsonFile); err != nil {
		log.Fatal("Error saving JSON results: ", err)
	}

	stats := sp.Stats()

	log.Printf("Processed %d frames: mean=%.2fms, p50=%.2fms, p95=%.2fms\n",
		stats.Frames, stats.Mean, stats.P50, stats.P95)

	log.Printf("Saved annotated video to %s and results to %s\n",
		*saveFile, *jsonFile)
}

// newDetector creates a YOLOv8 detector for the given model file using the
// built in COCO labels or those loaded from the label file
func newDetector(modelFile, labelFile string, seg bool) (detect.Detector, error) {

	labels := detect.COCOLabels()

	if labelFile != "" {
		var err error
		labels, err = detect.LoadLabels(labelFile)

		if err != nil {
			return nil, fmt.Errorf("error loading model labels: %w", err)
		}
	}

	if seg {
		params := detect.YOLOv8SegCOCOParams()
		params.Labels = labels
		return detect.NewYOLOv8Seg(modelFile, params)
	}

	params := detect.YOLOv8COCOParams()
	params.Labels = labels
	return detect.NewYOLOv8(modelFile, params)
}

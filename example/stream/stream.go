/*
Example that streams a video file with object tracking annotations to
a web browser as MJPEG, with a websocket feed of the per frame detection
results as JSON.  Each connected client gets its own tracking session,
the detector pool is shared between all of them.
*/
package main

import (
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	objtrail "github.com/objtrail/go-objtrail"
	"github.com/objtrail/go-objtrail/detect"
	"github.com/objtrail/go-objtrail/render"
	"github.com/objtrail/go-objtrail/tracker"
	"gocv.io/x/gocv"
)

var (
	// FPS is the number of FPS to simulate for the buffered video stream
	FPS         = 30
	FPSinterval = time.Duration(float64(time.Second) / float64(FPS))
)

// Config holds the stream server settings read from the environment
type Config struct {
	Addr      string
	ModelFile string
	LabelFile string
	VideoFile string
	PoolSize  int
	Algorithm string
	SegModel  bool
}

// LoadConfig reads settings from a .env file or the process environment
func LoadConfig() Config {

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return Config{
		Addr:      getEnv("STREAM_ADDR", "localhost:8080"),
		ModelFile: getEnv("MODEL_FILE", "../data/yolov8s.onnx"),
		LabelFile: getEnv("LABEL_FILE", ""),
		VideoFile: getEnv("VIDEO_FILE", "../data/traffic.mp4"),
		PoolSize:  getEnvInt("POOL_SIZE", 3),
		Algorithm: getEnv("TRACKER", "centroid"),
		SegModel:  getEnvBool("SEG_MODEL", false),
	}
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if boolVal, err := strconv.ParseBool(v); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// newDetector creates a YOLOv8 detector for the given model file, using
// the embedded COCO labels unless a label file is provided
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

// Demo defines the struct for running the object tracking stream server
type Demo struct {
	// vidBuffer buffers the video frames into memory
	vidBuffer []gocv.Mat
	// pool of detectors shared by all client sessions
	pool *detect.Pool
	cfg  Config
	// upgrader promotes /results requests to websocket connections
	upgrader websocket.Upgrader
}

// NewDemo returns an instance of Demo, a streaming HTTP server showing
// video with object detection and tracking
func NewDemo(cfg Config) (*Demo, error) {

	d := &Demo{
		cfg: cfg,
	}

	err := d.bufferVideo(cfg.VideoFile)

	if err != nil {
		return nil, fmt.Errorf("error buffering video: %w", err)
	}

	d.pool, err = detect.NewPool(cfg.PoolSize, func() (detect.Detector, error) {
		return newDetector(cfg.ModelFile, cfg.LabelFile, cfg.SegModel)
	})

	if err != nil {
		return nil, fmt.Errorf("error creating detector pool: %w", err)
	}

	d.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return d, nil
}

// Close frees the detector pool and buffered video frames
func (d *Demo) Close() {

	d.pool.Close()

	for i := range d.vidBuffer {
		d.vidBuffer[i].Close()
	}
}

// bufferVideo reads in the video frames and saves them to a buffer
func (d *Demo) bufferVideo(vidFile string) error {

	// open handle to read frames of video file
	video, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return err
	}

	defer video.Close()

	d.vidBuffer = make([]gocv.Mat, 0)

	for {
		img := gocv.NewMat()

		// read the next frame from the video
		if ok := video.Read(&img); !ok {
			// reached last video frame
			break
		}

		// Check if the frame is empty
		if img.Empty() {
			continue
		}

		// push frame onto buffer
		d.vidBuffer = append(d.vidBuffer, img)
	}

	if len(d.vidBuffer) == 0 {
		return fmt.Errorf("video file %s contains no frames", vidFile)
	}

	return nil
}

// newSession creates a tracking session for one client.  Sessions are per
// client as the pipeline keeps track and trail state between frames
func (d *Demo) newSession() *objtrail.Session {

	var trk objtrail.Tracker

	switch d.cfg.Algorithm {
	case "iou":
		params := tracker.DefaultParams()
		params.Algorithm = tracker.IoU
		trk = tracker.NewBlobTracker(params)

	case "byte":
		trk = tracker.NewByteTracker(tracker.DefaultByteParams())

	default:
		trk = tracker.NewBlobTracker(tracker.DefaultParams())
	}

	pipeline := objtrail.NewPipeline(d.pool, objtrail.Config{
		Tracker: trk,
	})

	return objtrail.NewSession(pipeline)
}

// Stream is the HTTP handler function used to stream video frames to browser
func (d *Demo) Stream(w http.ResponseWriter, r *http.Request) {

	log.Printf("New client connection established\n")

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	// frames go through the session in sequence on this goroutine as the
	// session cursor only moves forward
	session := d.newSession()
	session.Start()
	defer session.Stop()

	trails := session.Pipeline().Trails()
	font := render.DefaultFont()
	style := render.DefaultTrailStyle()

	// pointer to position in video buffer
	frameNum := -1

	// create Mat for annotated image
	resImg := gocv.NewMat()
	defer resImg.Close()

	// used for calculating FPS
	frameCount := 0
	startTime := time.Now()
	fps := float64(0)

	ticker := time.NewTicker(FPSinterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected\n")
			break loop

		// simulate reading 30FPS web camera
		case <-ticker.C:

			// increment pointer to next image in the video buffer
			frameNum++
			if frameNum > len(d.vidBuffer)-1 {
				// last frame reached so loop back to start of video and
				// discard the tracking state built up on the first pass
				frameNum = 0
				session.Stop()
				session.Start()
			}

			res, err := session.Process(&d.vidBuffer[frameNum])

			if err != nil {
				log.Printf("Error processing frame: %v", err)
				continue
			}

			// copy the source image and annotate the copy
			d.vidBuffer[frameNum].CopyTo(&resImg)
			d.annotate(&resImg, res, trails, font, style, fps)

			// Encode the image to JPEG format
			buf, err := gocv.IMEncode(".jpg", resImg)

			if err != nil {
				log.Printf("Error encoding frame: %v", err)
				continue
			}

			// Write the image to the response writer
			w.Write([]byte("--frame\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write(buf.GetBytes())
			w.Write([]byte("\r\n"))

			// Flush the buffer
			flusher, ok := w.(http.Flusher)
			if ok {
				flusher.Flush()
			}

			buf.Close()

			// calculate FPS
			frameCount++
			elapsed := time.Since(startTime).Seconds()

			if elapsed >= 1.0 {
				fps = float64(frameCount) / elapsed
				frameCount = 0
				startTime = time.Now()
			}
		}
	}
}

// annotate draws the masks, trails, detection boxes, and stats banner on
// the given image Mat
func (d *Demo) annotate(img *gocv.Mat, res objtrail.FrameResult,
	trails *objtrail.TrailStore, font render.Font, style render.TrailStyle,
	fps float64) {

	if d.cfg.SegModel {
		render.SegmentMasks(img, res.Detections, 0.5)
	}

	render.Trail(img, res.Detections, trails, style)
	render.DetectionBoxes(img, res.Detections, font, 2)

	// blank out background video behind stats banner
	gocv.Rectangle(img, image.Rect(0, 0, img.Cols(), 20), render.Black, -1)

	// add FPS, frame number, and object count to top of image
	gocv.PutTextWithParams(img,
		fmt.Sprintf("Frame: %d, FPS: %.2f, Objects: %d",
			res.Frame, fps, len(res.Detections)),
		image.Pt(4, 14), gocv.FontHersheySimplex, 0.5, render.Pink, 1,
		gocv.LineAA, false)
}

// Results is the HTTP handler function that streams per frame detection
// results as JSON over a websocket connection
func (d *Demo) Results(w http.ResponseWriter, r *http.Request) {

	conn, err := d.upgrader.Upgrade(w, r, nil)

	if err != nil {
		log.Printf("Error upgrading websocket: %v", err)
		return
	}

	defer conn.Close()

	log.Printf("New websocket client connected\n")

	session := d.newSession()
	session.Start()
	defer session.Stop()

	frameNum := -1

	ticker := time.NewTicker(FPSinterval)
	defer ticker.Stop()

	for range ticker.C {

		frameNum++
		if frameNum > len(d.vidBuffer)-1 {
			frameNum = 0
			session.Stop()
			session.Start()
		}

		res, err := session.Process(&d.vidBuffer[frameNum])

		if err != nil {
			log.Printf("Error processing frame: %v", err)
			continue
		}

		if err := conn.WriteJSON(res); err != nil {
			log.Printf("Websocket client disconnected: %v", err)
			return
		}
	}
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	cfg := LoadConfig()

	demo, err := NewDemo(cfg)

	if err != nil {
		log.Fatalf("Error creating demo: %v", err)
	}

	defer demo.Close()

	http.HandleFunc("/stream", demo.Stream)
	http.HandleFunc("/results", demo.Results)

	// start http server
	log.Println(fmt.Sprintf("Open browser and view video at http://%s/stream, "+
		"JSON results feed at ws://%s/results", cfg.Addr, cfg.Addr))
	log.Fatal(http.ListenAndServe(cfg.Addr, nil))
}

package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	objtrail "github.com/objtrail/go-objtrail"
	"github.com/objtrail/go-objtrail/detect"
	"github.com/objtrail/go-objtrail/render"
	"github.com/objtrail/go-objtrail/store"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8s.onnx", "ONNX exported YOLOv8 model file")
	imgFile := flag.String("i", "../data/catdog.jpg", "Image file to run object detection on")
	labelFile := flag.String("l", "", "Text file containing model labels, defaults to the built in COCO labels")
	saveFile := flag.String("o", "../data/catdog-out.jpg", "The output JPG file with object detection markers")
	jsonFile := flag.String("j", "", "Optional output JSON file with detection results")
	segModel := flag.Bool("seg", false, "Model is an instance segmentation model, render mask overlays")

	flag.Parse()

	detector, err := newDetector(*modelFile, *labelFile, *segModel)

	if err != nil {
		log.Fatal("Error initializing detector: ", err)
	}

	defer detector.Close()

	// load image
	img := gocv.IMRead(*imgFile, gocv.IMReadColor)

	if img.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer img.Close()

	// a single image carries no motion, run a session without a tracker so
	// results come back without identities
	session := objtrail.NewSession(objtrail.NewPipeline(detector, objtrail.Config{}))
	session.Start()
	defer session.Stop()

	start := time.Now()

	res, err := session.Process(&img)

	if err != nil {
		log.Fatal("Error processing image: ", err)
	}

	log.Printf("Processing time=%s\n", time.Since(start).String())

	// annotate the source image
	if *segModel {
		render.SegmentMasks(&img, res.Detections, 0.5)
	}

	render.DetectionBoxes(&img, res.Detections, render.DefaultFont(), 2)

	// output detection boxes to stdout
	for _, det := range res.Detections {
		fmt.Printf("%s @ (%d %d %d %d) %f\n", det.ClassName,
			det.Box.XMin, det.Box.YMin, det.Box.XMax, det.Box.YMax,
			det.Confidence)
	}

	if *jsonFile != "" {
		rec := store.NewRecorder()

		if err := rec.Consume(res); err != nil {
			log.Fatal("Error recording result: ", err)
		}

		if err := rec.SaveJSON(*jsonFile); err != nil {
			log.Fatal("Error saving JSON results: ", err)
		}

		log.Printf("Saved detection results to %s\n", *jsonFile)
	}

	// save the result
	if ok := gocv.IMWrite(*saveFile, img); !ok {
		log.Fatal("Failed to save the image")
	}

	log.Printf("Saved object detection result to %s\n", *saveFile)
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

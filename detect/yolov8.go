// Package detect runs object detection and instance segmentation model
// inference on frames using ONNX exported YOLOv8 models
package detect

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strconv"

	"gocv.io/x/gocv"

	objtrail "github.com/objtrail/go-objtrail"
)

// padColor is the letterbox padding gray the model was trained with
var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for inference and post processing
type YOLOv8Params struct {
	// BoxThreshold is the minimum probability score required for a bounding
	// box region to be considered for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for
	// defining the maximum allowed Intersection Over Union (IoU) between
	// two bounding boxes of the same class for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of different object classes the model
	// has been trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of detected objects returned
	// per frame
	MaxObjectNumber int
	// InputWidth and InputHeight are the model input tensor dimensions
	InputWidth  int
	InputHeight int
	// Labels are the class labels in training order
	Labels []string
}

// YOLOv8COCOParams returns an instance of YOLOv8Params configured with
// default values for a model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Maximum Object Number: 64
// - Input Tensor: 640x640
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.25,
		NMSThreshold:    0.45,
		ObjectClassNum:  80,
		MaxObjectNumber: 64,
		InputWidth:      640,
		InputHeight:     640,
		Labels:          COCOLabels(),
	}
}

// YOLOv8 runs object detection inference using a YOLOv8 ONNX model.  An
// instance is not safe for concurrent use, run one instance per goroutine
// or share them through a Pool
type YOLOv8 struct {
	// Params are the model configuration parameters
	Params YOLOv8Params
	net    gocv.Net
	// resizer for the most recently seen source dimensions
	resizer *Resizer
}

// NewYOLOv8 loads a YOLOv8 ONNX model from the given file and returns a
// detector instance for it
func NewYOLOv8(modelFile string, p YOLOv8Params) (*YOLOv8, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		return nil, fmt.Errorf("error loading model file %s", modelFile)
	}

	return &YOLOv8{
		Params: p,
		net:    net,
	}, nil
}

// Close frees the loaded model
func (y *YOLOv8) Close() error {

	if y.resizer != nil {
		y.resizer.Close()
	}

	return y.net.Close()
}

// Detect runs inference on a single frame and returns the detected
// objects in source frame coordinates
func (y *YOLOv8) Detect(frame objtrail.Frame) ([]objtrail.Detection, error) {

	img, ok := frame.(*gocv.Mat)

	if !ok {
		return nil, fmt.Errorf("frame is %T, want *gocv.Mat", frame)
	}

	if img.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	y.resizer = resizerFor(y.resizer, img.Cols(), img.Rows(),
		y.Params.InputWidth, y.Params.InputHeight)

	input := gocv.NewMat()
	defer input.Close()

	y.resizer.LetterBoxResize(*img, &input, padColor)

	blob := gocv.BlobFromImage(input, 1.0/255.0,
		image.Pt(y.Params.InputWidth, y.Params.InputHeight),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")

	out := y.net.Forward("")
	defer out.Close()

	return y.decode(out, y.resizer), nil
}

// decode converts the model output tensor of shape
// [1, 4+ObjectClassNum, boxes] into detections in source frame space
func (y *YOLOv8) decode(out gocv.Mat, resizer *Resizer) []objtrail.Detection {

	sizes := out.Size()

	if len(sizes) != 3 {
		return nil
	}

	rows := sizes[1]
	boxes := sizes[2]

	data := out.Reshape(1, rows)
	defer data.Close()

	var (
		rects   []image.Rectangle
		scores  []float32
		classes []int
	)

	for j := 0; j < boxes; j++ {

		classID, score := bestClass(data, j, 4, y.Params.ObjectClassNum)

		if score < y.Params.BoxThreshold {
			continue
		}

		cx := data.GetFloatAt(0, j)
		cy := data.GetFloatAt(1, j)
		w := data.GetFloatAt(2, j)
		h := data.GetFloatAt(3, j)

		rects = append(rects, image.Rect(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
		))
		scores = append(scores, score)
		classes = append(classes, classID)
	}

	keep := nmsPerClass(rects, scores, classes,
		y.Params.BoxThreshold, y.Params.NMSThreshold)

	dets := make([]objtrail.Detection, 0, len(keep))

	for _, idx := range keep {

		if len(dets) >= y.Params.MaxObjectNumber {
			break
		}

		dets = append(dets, toDetection(rects[idx], scores[idx],
			classes[idx], y.Params.Labels, resizer))
	}

	return dets
}

// toDetection translates a box in letterboxed model space into a detection
// in source frame space, clamped to the frame
func toDetection(rect image.Rectangle, score float32, classID int,
	labels []string, resizer *Resizer) objtrail.Detection {

	x0, y0 := resizer.SourceCoord(float32(rect.Min.X), float32(rect.Min.Y))
	x1, y1 := resizer.SourceCoord(float32(rect.Max.X), float32(rect.Max.Y))

	maxW := float32(resizer.SrcWidth())
	maxH := float32(resizer.SrcHeight())

	return objtrail.Detection{
		ClassID:    classID,
		ClassName:  classLabel(labels, classID),
		Confidence: float64(score),
		X0:         float64(clampf32(x0, 0, maxW)),
		Y0:         float64(clampf32(y0, 0, maxH)),
		X1:         float64(clampf32(x1, 0, maxW)),
		Y1:         float64(clampf32(y1, 0, maxH)),
	}
}

// classLabel returns the label for a class ID, falling back to the numeric
// ID when no label is known
func classLabel(labels []string, classID int) string {

	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}

	return strconv.Itoa(classID)
}

// bestClass returns the highest scoring class of output column j.  Class
// scores start at tensor row offset
func bestClass(data gocv.Mat, j, offset, classNum int) (int, float32) {

	classID := 0
	best := float32(0)

	for c := 0; c < classNum; c++ {
		if s := data.GetFloatAt(offset+c, j); s > best {
			best = s
			classID = c
		}
	}

	return classID, best
}

// nmsPerClass runs non maximum suppression independently per class and
// returns the kept candidate indexes ordered by descending score
func nmsPerClass(rects []image.Rectangle, scores []float32, classes []int,
	scoreThreshold, nmsThreshold float32) []int {

	byClass := make(map[int][]int)

	for i, c := range classes {
		byClass[c] = append(byClass[c], i)
	}

	var keep []int

	for _, idxs := range byClass {

		classRects := make([]image.Rectangle, len(idxs))
		classScores := make([]float32, len(idxs))

		for i, idx := range idxs {
			classRects[i] = rects[idx]
			classScores[i] = scores[idx]
		}

		for _, k := range gocv.NMSBoxes(classRects, classScores,
			scoreThreshold, nmsThreshold) {
			keep = append(keep, idxs[k])
		}
	}

	sort.Slice(keep, func(i, j int) bool {
		return scores[keep[i]] > scores[keep[j]]
	})

	return keep
}

// clampf32 limits v to the range [lo, hi]
func clampf32(v, lo, hi float32) float32 {

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

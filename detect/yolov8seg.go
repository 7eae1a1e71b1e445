package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	objtrail "github.com/objtrail/go-objtrail"
)

// YOLOv8SegParams defines the struct containing the YOLOv8 instance
// segmentation parameters to use for inference and post processing
type YOLOv8SegParams struct {
	YOLOv8Params
	// PrototypeChannel is the number of mask prototype channels defined
	// in the model
	PrototypeChannel int
	// PrototypeHeight is the prototype tensor height defined in the model
	PrototypeHeight int
	// PrototypeWidth is the prototype tensor width defined in the model
	PrototypeWidth int
	// UnclipRatio controls the outward expansion of segment outlines to
	// compensate the tightening introduced by contour approximation at
	// prototype resolution, zero disables expansion
	UnclipRatio float32
	// OutputNames are the detection and prototype output tensor names of
	// the exported model
	OutputNames []string
}

// YOLOv8SegCOCOParams returns an instance of YOLOv8SegParams configured
// with default values for a model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Maximum Object Number: 64
// - Input Tensor: 640x640
// - Prototype Tensor: 32x160x160
func YOLOv8SegCOCOParams() YOLOv8SegParams {
	return YOLOv8SegParams{
		YOLOv8Params:     YOLOv8COCOParams(),
		PrototypeChannel: 32,
		PrototypeHeight:  160,
		PrototypeWidth:   160,
		UnclipRatio:      1.0,
		OutputNames:      []string{"output0", "output1"},
	}
}

// YOLOv8Seg runs instance segmentation inference using a YOLOv8 ONNX
// segmentation model.  Detections carry a per instance mask and a
// normalized segment outline in addition to the bounding box.  An instance
// is not safe for concurrent use, run one instance per goroutine or share
// them through a Pool
type YOLOv8Seg struct {
	// Params are the model configuration parameters
	Params YOLOv8SegParams
	net    gocv.Net
	// resizer for the most recently seen source dimensions
	resizer *Resizer
}

// NewYOLOv8Seg loads a YOLOv8 segmentation ONNX model from the given file
// and returns a detector instance for it
func NewYOLOv8Seg(modelFile string, p YOLOv8SegParams) (*YOLOv8Seg, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		return nil, fmt.Errorf("error loading model file %s", modelFile)
	}

	return &YOLOv8Seg{
		Params: p,
		net:    net,
	}, nil
}

// Close frees the loaded model
func (y *YOLOv8Seg) Close() error {

	if y.resizer != nil {
		y.resizer.Close()
	}

	return y.net.Close()
}

// Detect runs inference on a single frame and returns the detected
// objects with instance masks in source frame coordinates
func (y *YOLOv8Seg) Detect(frame objtrail.Frame) ([]objtrail.Detection, error) {

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

	outs := y.net.ForwardLayers(y.Params.OutputNames)

	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	if len(outs) != 2 {
		return nil, fmt.Errorf("expected 2 output tensors, got %d", len(outs))
	}

	return y.decode(outs[0], outs[1], y.resizer)
}

// decode converts the detection tensor of shape
// [1, 4+ObjectClassNum+PrototypeChannel, boxes] and the prototype tensor
// of shape [1, PrototypeChannel, PrototypeHeight, PrototypeWidth] into
// detections with instance masks
func (y *YOLOv8Seg) decode(det, proto gocv.Mat,
	resizer *Resizer) ([]objtrail.Detection, error) {

	sizes := det.Size()

	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected detection tensor shape %v", sizes)
	}

	rows := sizes[1]
	boxes := sizes[2]

	data := det.Reshape(1, rows)
	defer data.Close()

	coeffOffset := 4 + y.Params.ObjectClassNum

	if rows < coeffOffset+y.Params.PrototypeChannel {
		return nil, fmt.Errorf("detection tensor has %d rows, want %d",
			rows, coeffOffset+y.Params.PrototypeChannel)
	}

	var (
		rects   []image.Rectangle
		scores  []float32
		classes []int
		coeffs  [][]float32
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

		c := make([]float32, y.Params.PrototypeChannel)

		for k := range c {
			c[k] = data.GetFloatAt(coeffOffset+k, j)
		}

		rects = append(rects, image.Rect(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
		))
		scores = append(scores, score)
		classes = append(classes, classID)
		coeffs = append(coeffs, c)
	}

	keep := nmsPerClass(rects, scores, classes,
		y.Params.BoxThreshold, y.Params.NMSThreshold)

	protoData, err := proto.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading prototype tensor: %w", err)
	}

	dets := make([]objtrail.Detection, 0, len(keep))

	for _, idx := range keep {

		if len(dets) >= y.Params.MaxObjectNumber {
			break
		}

		d := toDetection(rects[idx], scores[idx], classes[idx],
			y.Params.Labels, resizer)

		d.Mask = y.instanceMask(coeffs[idx], protoData, rects[idx], resizer)
		d.Segment = MaskPolygon(d.Mask, y.Params.UnclipRatio)

		dets = append(dets, d)
	}

	return dets, nil
}

// instanceMask computes the binary mask of one detection from its mask
// coefficients and the prototype tensor.  The returned mask covers the
// unpadded region of model space at prototype resolution, so it matches
// the source frame aspect ratio and rescales onto the source frame
func (y *YOLOv8Seg) instanceMask(coeffs []float32, proto []float32,
	rect image.Rectangle, resizer *Resizer) objtrail.Mask {

	protoW := y.Params.PrototypeWidth
	protoH := y.Params.PrototypeHeight
	protoC := y.Params.PrototypeChannel
	planeSize := protoW * protoH

	if len(proto) < protoC*planeSize {
		return nil
	}

	// prototype space is model input space downscaled
	scaleX := float32(protoW) / float32(resizer.DstWidth())
	scaleY := float32(protoH) / float32(resizer.DstHeight())

	xPad := int(float32(resizer.XPad()) * scaleX)
	yPad := int(float32(resizer.YPad()) * scaleY)

	// detection box in prototype space, mask pixels outside it are
	// background
	x1 := clampInt(int(float32(rect.Min.X)*scaleX), 0, protoW)
	y1 := clampInt(int(float32(rect.Min.Y)*scaleY), 0, protoH)
	x2 := clampInt(int(float32(rect.Max.X)*scaleX)+1, 0, protoW)
	y2 := clampInt(int(float32(rect.Max.Y)*scaleY)+1, 0, protoH)

	outW := protoW - xPad*2
	outH := protoH - yPad*2

	if outW < 1 || outH < 1 {
		return nil
	}

	mask := make(objtrail.Mask, outH)

	for my := 0; my < outH; my++ {

		row := make([]float32, outW)
		py := my + yPad

		if py >= y1 && py < y2 {
			for mx := 0; mx < outW; mx++ {

				px := mx + xPad

				if px < x1 || px >= x2 {
					continue
				}

				// coefficient by prototype dot product, positive sums
				// are object pixels
				var sum float32
				base := py*protoW + px

				for k := 0; k < protoC; k++ {
					sum += coeffs[k] * proto[k*planeSize+base]
				}

				if sum > 0 {
					row[mx] = 1
				}
			}
		}

		mask[my] = row
	}

	return mask
}

// clampInt limits v to the range [lo, hi]
func clampInt(v, lo, hi int) int {

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

package render

import (
	"fmt"
	"image"
	"image/color"

	objtrail "github.com/objtrail/go-objtrail"
	"gocv.io/x/gocv"
)

// boxLabel defines where a detection label should be rendered on the
// source image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// Label returns the annotation text for a detection.  The resolved object
// identity is included when the detection carries one
func Label(det objtrail.IdentifiedDetection) string {
	if det.Identified() {
		return fmt.Sprintf("%s %d: %.2f", det.ClassName, *det.Identity, det.Confidence)
	}
	return fmt.Sprintf("%s: %.2f", det.ClassName, det.Confidence)
}

// DetectionBoxes renders the bounding boxes around the detected objects
// using the class color of each object, with a filled label above the box
func DetectionBoxes(img *gocv.Mat, dets []objtrail.IdentifiedDetection,
	font Font, lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	for _, det := range dets {

		useClr := ClassColor(det.ClassID)

		// draw rectangle around detected object
		rect := image.Rect(det.Box.XMin, det.Box.YMin, det.Box.XMax, det.Box.YMax)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		// create text for label
		text := Label(det)
		textSize, baseline := gocv.GetTextSizeWithBaseline(text, font.Face,
			font.Scale, font.Thickness)

		// label background sits flush above the box top edge with the text
		// anchored on its baseline
		bRect := image.Rect(det.Box.XMin, det.Box.YMin-textSize.Y-baseline,
			det.Box.XMin+textSize.X, det.Box.YMin)
		labelPosition := image.Pt(det.Box.XMin, det.Box.YMin-baseline)

		// record label rendering details
		nextLabel := boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		}
		boxLabels = append(boxLabels, nextLabel)
	}

	// draw all precalculated box labels so they are the top most layer on the
	// image and don't get overlapped with trail lines or mask overlays
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

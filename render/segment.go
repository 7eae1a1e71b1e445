package render

import (
	objtrail "github.com/objtrail/go-objtrail"
	"gocv.io/x/gocv"
)

// SegmentMasks renders the instance segmentation masks of all detections as
// a transparent class colored overlay on top of the image
func SegmentMasks(img *gocv.Mat, dets []objtrail.IdentifiedDetection,
	alpha float32) {

	// get dimensions
	width := img.Cols()
	height := img.Rows()

	// it is too slow to manipulate pixel by pixel using GoCV due to slowness
	// over CGO.  So we copy the bytes from the source image and manipulate
	// the bytes directly before copying back to a Mat
	imgData := img.ToBytes()

	for _, det := range dets {

		if det.Mask == nil {
			continue
		}

		// masks are rescaled to frame resolution during record building,
		// skip any that are not
		mw, mh := det.Mask.Dims()
		if mw != width || mh != height {
			continue
		}

		clr := ClassColor(det.ClassID)

		// iterate over each pixel in the segmentation mask
		for j := 0; j < height; j++ {
			for k := 0; k < width; k++ {

				v := det.Mask[j][k]
				if v == 0 {
					continue
				}

				// calculate position in the byte slice, pixels are held
				// in BGR order
				pixelPos := j*width*3 + k*3

				// add the class color scaled by the mask value on top of
				// the original pixel
				imgData[pixelPos+0] = satAdd(imgData[pixelPos+0], alpha*v*float32(clr.B))
				imgData[pixelPos+1] = satAdd(imgData[pixelPos+1], alpha*v*float32(clr.G))
				imgData[pixelPos+2] = satAdd(imgData[pixelPos+2], alpha*v*float32(clr.R))
			}
		}
	}

	// copy back to the original mat
	tmpImg, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, imgData)
	if err != nil {
		return
	}
	defer tmpImg.Close()
	tmpImg.CopyTo(img)
}

// satAdd adds the weighted color value to a pixel channel saturating at the
// maximum channel value
func satAdd(p uint8, add float32) uint8 {
	v := float32(p) + add
	if v > 255 {
		return 255
	}
	return uint8(v)
}

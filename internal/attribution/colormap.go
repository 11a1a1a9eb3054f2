package attribution

import "image"

// applyJet maps intensities through the jet colormap (blue → green → yellow
// → red for low → high saliency), producing the 3-channel heat image.
func applyJet(intensity *image.Gray) *image.RGBA {
	bounds := intensity.Bounds()
	out := image.NewRGBA(bounds)
	for i, v := range intensity.Pix {
		r, g, b := jet(float64(v) / 255)
		out.Pix[i*4+0] = r
		out.Pix[i*4+1] = g
		out.Pix[i*4+2] = b
		out.Pix[i*4+3] = 255
	}
	return out
}

// jet evaluates the piecewise-linear jet ramp at v in [0,1].
func jet(v float64) (uint8, uint8, uint8) {
	r := jetChannel(1.5 - abs(4*v-3))
	g := jetChannel(1.5 - abs(4*v-2))
	b := jetChannel(1.5 - abs(4*v-1))
	return r, g, b
}

func jetChannel(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 255)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

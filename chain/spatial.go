package chain

import (
	"math"
)

const (
	// SourceSpread is the azimuth offset of each virtual speaker.
	SourceSpread = 30.0
	// MinDistance is the distance floor in meters.
	MinDistance = 0.2
	// DefaultDistance is the initial listener to source distance.
	DefaultDistance = 1.0
	// sourceVolume keeps the sum of both sources below clipping.
	sourceVolume = 0.5
	maxYaw       = 180.0
)

// pose is the shared spatial position. Fields are updated independently.
type pose struct {
	azimuth   param
	elevation param
	distance  param
	yaw       param
}

// NormalizeAngle wraps degrees into (-180, 180]. Non-finite input maps
// to zero.
func NormalizeAngle(deg float64) float64 {
	if !finite(deg) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}

// SourceAzimuths returns ear-relative azimuths of the left and right
// virtual sources for a global azimuth and head yaw.
func SourceAzimuths(azimuth, yaw float64) (left, right float64) {
	return NormalizeAngle(-SourceSpread + azimuth - yaw),
		NormalizeAngle(SourceSpread + azimuth - yaw)
}

// Attenuation is inverse-square distance gain, never above 1.
func Attenuation(distance float64) float64 {
	if !(distance >= MinDistance) {
		distance = MinDistance
	}
	return math.Min(1, 1/(distance*distance))
}

func (c *Chain) spatialize(left, right []float64) ([]float64, []float64) {
	if !c.spatial.Load() || c.sources[0] == nil || c.sources[1] == nil {
		return left, right
	}
	yaw := 0.0
	if c.headTracking.Load() {
		yaw = c.pose.yaw.Load()
	}
	azLeft, azRight := SourceAzimuths(c.pose.azimuth.Load(), yaw)
	elevation := c.pose.elevation.Load()
	volume := sourceVolume * Attenuation(c.pose.distance.Load())

	n := len(left)
	outLeft, outRight := c.outLeft[:n], c.outRight[:n]
	clear(outLeft)
	clear(outRight)
	c.sources[0].SetPosition(azLeft, elevation, volume)
	c.sources[0].Render(left, outLeft, outRight)
	c.sources[1].SetPosition(azRight, elevation, volume)
	c.sources[1].Render(right, outLeft, outRight)
	return outLeft, outRight
}

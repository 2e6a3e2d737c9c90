package chain

// SetEQBand sets band gain in dB. Invalid index or non-finite gain is
// ignored.
func (c *Chain) SetEQBand(band int, db float64) {
	if band < 0 || band >= NumBands || !finite(db) {
		return
	}
	c.gains[band].Store(db)
}

// EQBand returns band gain in dB. Invalid index returns zero.
func (c *Chain) EQBand(band int) float64 {
	if band < 0 || band >= NumBands {
		return 0
	}
	return c.gains[band].Load()
}

// Bands returns all band gains in dB.
func (c *Chain) Bands() [NumBands]float64 {
	var gains [NumBands]float64
	for i := range gains {
		gains[i] = c.gains[i].Load()
	}
	return gains
}

// SetCompressor sets compressor parameters. Ratio below 1 disables gain
// reduction, attack and release are floored at 0.1 ms.
func (c *Chain) SetCompressor(thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) {
	c.comp.set(thresholdDB, ratio, attackMs, releaseMs, makeupDB)
}

// SetReverb toggles reverb and sets wet mix clamped to [0, 1].
func (c *Chain) SetReverb(enabled bool, wet float64) {
	if finite(wet) {
		c.reverbWet.Store(clamp(wet, 0, 1))
	}
	c.reverbOn.Store(enabled)
}

// Reverb returns reverb state and wet mix.
func (c *Chain) Reverb() (bool, float64) {
	return c.reverbOn.Load(), c.reverbWet.Load()
}

// SetSpatialEnabled toggles spatial rendering.
func (c *Chain) SetSpatialEnabled(enabled bool) {
	c.spatial.Store(enabled)
}

// SpatialEnabled reports if spatial rendering is on.
func (c *Chain) SpatialEnabled() bool {
	return c.spatial.Load()
}

// SetSpatialPosition sets global source position. Each value is stored
// independently, non-finite values are ignored.
func (c *Chain) SetSpatialPosition(azimuth, elevation, distance float64) {
	if finite(azimuth) {
		c.pose.azimuth.Store(azimuth)
	}
	if finite(elevation) {
		c.pose.elevation.Store(elevation)
	}
	if finite(distance) {
		c.pose.distance.Store(distance)
	}
}

// SpatialPosition returns azimuth, elevation and distance.
func (c *Chain) SpatialPosition() (azimuth, elevation, distance float64) {
	return c.pose.azimuth.Load(), c.pose.elevation.Load(), c.pose.distance.Load()
}

// SetHeadTrackingEnabled toggles head yaw compensation.
func (c *Chain) SetHeadTrackingEnabled(enabled bool) {
	c.headTracking.Store(enabled)
}

// HeadTrackingEnabled reports if head yaw compensation is on.
func (c *Chain) HeadTrackingEnabled() bool {
	return c.headTracking.Load()
}

// SetHeadTrackingYaw sets head yaw in degrees clamped to [-180, 180].
func (c *Chain) SetHeadTrackingYaw(deg float64) {
	if !finite(deg) {
		return
	}
	c.pose.yaw.Store(clamp(deg, -maxYaw, maxYaw))
}

// HeadTrackingYaw returns head yaw in degrees.
func (c *Chain) HeadTrackingYaw() float64 {
	return c.pose.yaw.Load()
}

// CopyParams copies all control parameters from src. Processing state
// such as the compressor envelope and reverb tails is not copied.
func (c *Chain) CopyParams(src *Chain) {
	for i := range c.gains {
		c.gains[i].Store(src.gains[i].Load())
	}
	c.SetCompressor(src.comp.thresholdDB.Load(), src.comp.ratio.Load(),
		src.comp.attackMs.Load(), src.comp.releaseMs.Load(), src.comp.makeupDB.Load())
	c.reverbOn.Store(src.reverbOn.Load())
	c.reverbWet.Store(src.reverbWet.Load())
	c.spatial.Store(src.spatial.Load())
	c.headTracking.Store(src.headTracking.Load())
	c.pose.azimuth.Store(src.pose.azimuth.Load())
	c.pose.elevation.Store(src.pose.elevation.Load())
	c.pose.distance.Store(src.pose.distance.Load())
	c.pose.yaw.Store(src.pose.yaw.Load())
}

package motion

// clamp は値を [-limit, limit] に収める。
func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// smooth は指数平滑化 prev*(1-α) + target*α を返す。
func smooth(prev, target, alpha float64) float64 {
	return prev*(1-alpha) + target*alpha
}

// decayIntegrate は減衰積分 prev*d + velocity*k を返す。
func decayIntegrate(prev, velocity, decay, k float64) float64 {
	return prev*decay + velocity*k
}

// smoothAxis は生値から目標値を求めて平滑化し、クランプ済みの値を返す。
// 目標値は平滑化の前にクランプする。
func (o Options) smoothAxis(prev, raw float64) float64 {
	target := clamp(raw*o.Sensitivity, o.MaxRotation)
	return clamp(smooth(prev, target, o.Smoothing), o.MaxRotation)
}

// decayAxis は角速度を減衰積分し、クランプ済みの値を返す。
func (o Options) decayAxis(prev, velocity float64) float64 {
	return clamp(decayIntegrate(prev, velocity, o.Decay, o.Sensitivity), o.MaxRotation)
}

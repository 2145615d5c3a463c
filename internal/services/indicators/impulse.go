package indicators

import "math"

// VolumeImpulse divides the latest volume by the mean of the preceding
// Window volumes. A zero Window averages every prior bar. A zero baseline
// is replaced by 1.
type VolumeImpulse struct {
	Window int
}

func (v VolumeImpulse) Name() string { return "volume_impulse" }

func (v VolumeImpulse) Last(volumes []float64) (float64, error) {
	need := 2
	if v.Window > 0 {
		need = v.Window + 1
	}
	if err := needLen(v.Name(), len(volumes), need); err != nil {
		return math.NaN(), err
	}

	n := len(volumes)
	prior := volumes[:n-1]
	if v.Window > 0 {
		prior = prior[len(prior)-v.Window:]
	}
	base := mean(prior)
	if base == 0 {
		base = 1
	}
	return volumes[n-1] / base, nil
}

func (v VolumeImpulse) Compute(f Frame) (Result, error) {
	x, err := v.Last(f.Volume)
	if err != nil {
		return nil, err
	}
	return Result{"volume_impulse": x}, nil
}

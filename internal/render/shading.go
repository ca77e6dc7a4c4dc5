package render

import (
	"math"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
)

type fragment struct {
	world  core.Vec3
	normal core.Vec3
	uv     [2]float64
}

type lighting struct {
	eye     core.Vec3
	ambient gpu.Color
	sun     DirectionalLight
}

// shade runs the material's fragment program and returns color and alpha.
func shade(m *gpu.Material, f fragment, l lighting) (gpu.Color, float64) {
	alpha := 1.0
	if m.Transparent {
		alpha = m.Opacity
	}

	base := m.Color
	if m.Map != nil {
		base = base.Mul(m.Map.Sample(f.uv[0], f.uv[1]))
	}

	switch m.Shading {
	case gpu.Lambert:
		n := f.normal.Normalize()
		diffuse := math.Max(0, n.Dot(l.sun.Direction.Normalize())) * l.sun.Intensity
		light := l.ambient.Add(l.sun.Color.Scale(diffuse))
		return base.Mul(light).Add(m.Emissive), alpha

	case gpu.Fresnel:
		n := f.normal.Normalize()
		view := l.eye.Sub(f.world).Normalize()
		i := m.FresnelBias - n.Dot(view)
		if i <= 0 {
			return gpu.Color{}, alpha
		}
		return m.Color.Scale(math.Pow(i, m.FresnelPower)), alpha

	default:
		return base.Add(m.Emissive), alpha
	}
}

func blend(dst, src gpu.Color, alpha float64, mode gpu.Blending) gpu.Color {
	if mode == gpu.AdditiveBlending {
		return dst.Add(src.Scale(alpha))
	}
	if alpha >= 1 {
		return src
	}
	return dst.Lerp(src, alpha)
}

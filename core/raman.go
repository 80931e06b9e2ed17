package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// srsMaxIterations bounds the fixed-point solve of the coupled power
// evolution; weakly coupled spans converge in a handful of sweeps.
const srsMaxIterations = 1000

// RamanProfile is the longitudinal power evolution of every wave in the
// fiber: the WDM channels plus any Raman pumps, sorted by frequency.
type RamanProfile struct {
	Frequency []float64
	Z         []float64
	// Power[i][k] is the power of wave i at position Z[k] in W.
	Power [][]float64
	// Rho[i][k] is the field attenuation of wave i at Z[k], relative to
	// its launch boundary.
	Rho [][]float64

	// Position of channel i of the spectrum within the sorted wave list.
	channelIdx []int
}

// ChannelLoss returns the power transmission ratio of channel i between
// the fiber input and position Z[k].
func (p *RamanProfile) ChannelLoss(i, k int) float64 {
	r := p.Rho[p.channelIdx[i]][k]
	return r * r
}

// ChannelRho returns the field attenuation profile of channel i.
func (p *RamanProfile) ChannelRho(i int) []float64 {
	return p.Rho[p.channelIdx[i]]
}

// zGrid samples the span every resolution meters, both span ends
// included.
func zGrid(lengthM, resolution float64) []float64 {
	n := int(math.Ceil(lengthM/resolution)) + 1
	if n < 2 {
		n = 2
	}
	return linspace(0, lengthM, n)
}

// CalculateAttenuationProfile returns the closed-form power evolution of
// the channels under fiber attenuation alone.
func CalculateAttenuationProfile(si *SpectralInformation, fiber *Fiber, sim SimParams) *RamanProfile {
	freq := si.Frequency()
	z := zGrid(fiber.Params.LengthM, sim.Raman.SpaceResolution)
	alpha := fiber.Alpha(freq)
	n := len(freq)
	profile := &RamanProfile{
		Frequency:  append([]float64(nil), freq...),
		Z:          z,
		Power:      make([][]float64, n),
		Rho:        make([][]float64, n),
		channelIdx: make([]int, n),
	}
	signal := si.Signal()
	lumped := fiber.lumpedLinear(z)
	for i := 0; i < n; i++ {
		profile.channelIdx[i] = i
		profile.Power[i] = make([]float64, len(z))
		profile.Rho[i] = make([]float64, len(z))
		for k, zk := range z {
			att := math.Exp(-alpha[i]*zk) * lumped[k]
			profile.Power[i][k] = signal[i] * att
			profile.Rho[i][k] = math.Sqrt(att)
		}
	}
	return profile
}

// wave is one power slice entering the coupled solve.
type wave struct {
	frequency float64
	power     float64
	forward   bool
	channel   int // index in the spectrum, -1 for pumps
}

// CalculateStimulatedRamanScattering solves the coupled power evolution
// of channels and pumps along the span, including pump depletion and
// inter-channel Raman transfer. The two-point boundary problem (forward
// waves fixed at z=0, counter-propagating pumps at z=L) is solved by
// fixed-point iteration starting from the attenuation-only profile.
func CalculateStimulatedRamanScattering(si *SpectralInformation, fiber *Fiber, pumps []model.RamanPump, sim SimParams) (*RamanProfile, error) {
	waves := make([]wave, 0, si.NumberOfChannels()+len(pumps))
	for i, f := range si.Frequency() {
		waves = append(waves, wave{frequency: f, power: si.Signal()[i], forward: true, channel: i})
	}
	for _, p := range pumps {
		waves = append(waves, wave{
			frequency: p.FrequencyHz,
			power:     p.PowerW,
			forward:   p.PropagationDirection != model.PumpCounterpro,
			channel:   -1,
		})
	}
	sort.SliceStable(waves, func(a, b int) bool { return waves[a].frequency < waves[b].frequency })

	n := len(waves)
	freq := make([]float64, n)
	channelIdx := make([]int, si.NumberOfChannels())
	for i, w := range waves {
		freq[i] = w.frequency
		if w.channel >= 0 {
			channelIdx[w.channel] = i
		}
	}
	alpha := fiber.Alpha(freq)
	cr := fiber.Cr(freq)
	z := zGrid(fiber.Params.LengthM, sim.Raman.SpaceResolution)
	nz := len(z)

	// Attenuation-only starting point, each wave decaying away from its
	// launch boundary; lumped losses hit every wave crossing them.
	lumped := fiber.lumpedLinear(z)
	power := make([][]float64, n)
	for i, w := range waves {
		power[i] = make([]float64, nz)
		for k, zk := range z {
			d := zk
			ll := lumped[k]
			if !w.forward {
				d = z[nz-1] - zk
				ll = lumped[nz-1] / lumped[k]
			}
			power[i][k] = w.power * math.Exp(-alpha[i]*d) * ll
		}
	}

	// net rate (1/m) experienced by wave i at position k under the
	// current power estimate.
	rate := func(i, k int) float64 {
		var transfer float64
		for j := 0; j < n; j++ {
			if j != i {
				transfer += cr[i][j] * power[j][k]
			}
		}
		return -alpha[i] + transfer
	}

	next := make([][]float64, n)
	for i := range next {
		next[i] = make([]float64, nz)
	}
	for iter := 0; iter < srsMaxIterations; iter++ {
		var worst float64
		for i, w := range waves {
			if w.forward {
				next[i][0] = w.power
				for k := 1; k < nz; k++ {
					g := (rate(i, k-1) + rate(i, k)) / 2
					next[i][k] = next[i][k-1] * math.Exp(g*(z[k]-z[k-1])) * (lumped[k] / lumped[k-1])
				}
			} else {
				next[i][nz-1] = w.power
				for k := nz - 2; k >= 0; k-- {
					g := (rate(i, k+1) + rate(i, k)) / 2
					next[i][k] = next[i][k+1] * math.Exp(g*(z[k+1]-z[k])) * (lumped[k+1] / lumped[k])
				}
			}
		}
		for i := 0; i < n; i++ {
			for k := 0; k < nz; k++ {
				if power[i][k] > 0 {
					if delta := math.Abs(next[i][k]-power[i][k]) / power[i][k]; delta > worst {
						worst = delta
					}
				}
				power[i][k] = next[i][k]
			}
		}
		if worst < sim.Raman.Tolerance {
			rho := make([][]float64, n)
			for i, w := range waves {
				rho[i] = make([]float64, nz)
				for k := 0; k < nz; k++ {
					rho[i][k] = math.Sqrt(power[i][k] / w.power)
				}
			}
			return &RamanProfile{Frequency: freq, Z: z, Power: power, Rho: rho, channelIdx: channelIdx}, nil
		}
	}
	return nil, fmt.Errorf("CalculateStimulatedRamanScattering: no convergence within %d iterations", srsMaxIterations)
}

// absCrMatrix returns the unsigned Raman efficiency between every pair of
// waves, without the photon-energy correction.
func absCrMatrix(fiber *Fiber, freq []float64) [][]float64 {
	n := len(freq)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		if fiber.Params.Raman == nil {
			continue
		}
		for j := 0; j < n; j++ {
			df := math.Abs(freq[j] - freq[i])
			out[i][j] = interp1(df, fiber.Params.Raman.FrequencyOffsetHz, fiber.Params.Raman.Cr)
		}
	}
	return out
}

// CalculateSpontaneousRamanScattering integrates the amplified
// spontaneous Raman emission seeded along the span by every
// higher-frequency wave, at the given fiber temperature. It returns the
// ASE power in W reaching the fiber end on each channel, both
// polarizations included.
func CalculateSpontaneousRamanScattering(si *SpectralInformation, srs *RamanProfile, fiber *Fiber, temperatureK float64) []float64 {
	freq := srs.Frequency
	z := srs.Z
	n := len(freq)
	nz := len(z)
	alpha := fiber.Alpha(freq)
	cr := absCrMatrix(fiber, freq)

	intPump := make([][]float64, n)
	for j := 0; j < n; j++ {
		intPump[j] = cumtrapz(srs.Power[j], z)
	}

	out := make([]float64, si.NumberOfChannels())
	for ch := range out {
		k := srs.channelIdx[ch]
		fASE := freq[k]
		bn := si.BaudRate()[ch]

		intGainLoss := make([]float64, nz)
		newASE := make([]float64, nz)
		for zi := 0; zi < nz; zi++ {
			gl := -alpha[k] * z[zi]
			for j := 0; j < k; j++ {
				gl -= (fASE / freq[j]) * cr[k][j] * intPump[j][zi]
			}
			var ase float64
			for j := k + 1; j < n; j++ {
				gl += cr[k][j] * intPump[j][zi]
				eta := 1 / (math.Exp(PlanckConst*(freq[j]-fASE)/(BoltzmannConst*temperatureK)) - 1)
				ase += cr[k][j] * (1 + eta) * srs.Power[j][zi] * PlanckConst * fASE * bn
			}
			intGainLoss[zi] = gl
			newASE[zi] = ase
		}

		seed := make([]float64, nz)
		for zi := 0; zi < nz; zi++ {
			seed[zi] = newASE[zi] * math.Exp(-intGainLoss[zi])
		}
		evolution := cumtrapz(seed, z)
		out[ch] = 2 * evolution[nz-1] * math.Exp(intGainLoss[nz-1])
	}
	return out
}

package tracker

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// stateDim is the size of the state vector (cx, cy, w, h, vcx, vcy, vw, vh)
const stateDim = 8

// measureDim is the size of the measurement vector (cx, cy, w, h)
const measureDim = 4

// KalmanFilter is a constant velocity Kalman filter over a bounding box in
// center x, center y, width, height space.  Process and measurement noise
// are scaled by the box dimensions.
type KalmanFilter struct {
	stdWeightPosition float64
	stdWeightVelocity float64
	// motionMat is the 8x8 state transition matrix
	motionMat *mat.Dense
	// updateMat is the 4x8 observation matrix
	updateMat *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter
func NewKalmanFilter(stdWeightPosition, stdWeightVelocity float64) *KalmanFilter {

	motionMat := mat.NewDense(stateDim, stateDim, nil)

	for i := 0; i < stateDim; i++ {
		motionMat.Set(i, i, 1)
	}

	// dt of one frame
	for i := 0; i < measureDim; i++ {
		motionMat.Set(i, measureDim+i, 1)
	}

	updateMat := mat.NewDense(measureDim, stateDim, nil)

	for i := 0; i < measureDim; i++ {
		updateMat.Set(i, i, 1)
	}

	return &KalmanFilter{
		stdWeightPosition: stdWeightPosition,
		stdWeightVelocity: stdWeightVelocity,
		motionMat:         motionMat,
		updateMat:         updateMat,
	}
}

// Initiate creates the state mean and covariance from an unassociated
// measurement.  Velocities start at zero.
func (kf *KalmanFilter) Initiate(measurement [4]float64) (*mat.VecDense, *mat.SymDense) {

	mean := mat.NewVecDense(stateDim, nil)

	for i := 0; i < measureDim; i++ {
		mean.SetVec(i, measurement[i])
	}

	w, h := measurement[2], measurement[3]

	std := []float64{
		2 * kf.stdWeightPosition * w,
		2 * kf.stdWeightPosition * h,
		2 * kf.stdWeightPosition * w,
		2 * kf.stdWeightPosition * h,
		10 * kf.stdWeightVelocity * w,
		10 * kf.stdWeightVelocity * h,
		10 * kf.stdWeightVelocity * w,
		10 * kf.stdWeightVelocity * h,
	}

	return mean, diagSquared(std)
}

// Predict runs the prediction step, advancing mean and covariance by one frame
func (kf *KalmanFilter) Predict(mean *mat.VecDense, cov *mat.SymDense) {

	w, h := mean.AtVec(2), mean.AtVec(3)

	motionCov := diagSquared([]float64{
		kf.stdWeightPosition * w,
		kf.stdWeightPosition * h,
		kf.stdWeightPosition * w,
		kf.stdWeightPosition * h,
		kf.stdWeightVelocity * w,
		kf.stdWeightVelocity * h,
		kf.stdWeightVelocity * w,
		kf.stdWeightVelocity * h,
	})

	var next mat.VecDense
	next.MulVec(kf.motionMat, mean)
	mean.CopyVec(&next)

	// F * P * F' + Q
	var fp, fpf mat.Dense
	fp.Mul(kf.motionMat, cov)
	fpf.Mul(&fp, kf.motionMat.T())
	fpf.Add(&fpf, motionCov)

	setSymmetric(cov, &fpf)
}

// Update runs the correction step with the given measurement
func (kf *KalmanFilter) Update(mean *mat.VecDense, cov *mat.SymDense,
	measurement [4]float64) error {

	projMean, projCov := kf.project(mean, cov)

	var chol mat.Cholesky

	if ok := chol.Factorize(projCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// P * H'
	var pht mat.Dense
	pht.Mul(cov, kf.updateMat.T())

	// solve S * K' = (P * H')' for the transposed Kalman gain
	var gainT mat.Dense

	if err := chol.SolveTo(&gainT, pht.T()); err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(measureDim, nil)

	for i := 0; i < measureDim; i++ {
		innovation.SetVec(i, measurement[i]-projMean.AtVec(i))
	}

	var delta mat.VecDense
	delta.MulVec(gainT.T(), innovation)
	mean.AddVec(mean, &delta)

	// P - K * S * K'
	var ks, ksk, updated mat.Dense
	ks.Mul(gainT.T(), projCov)
	ksk.Mul(&ks, &gainT)
	updated.Sub(cov, &ksk)

	setSymmetric(cov, &updated)

	return nil
}

// project maps the state distribution into measurement space
func (kf *KalmanFilter) project(mean *mat.VecDense,
	cov *mat.SymDense) (*mat.VecDense, *mat.SymDense) {

	w, h := mean.AtVec(2), mean.AtVec(3)

	innovationCov := diagSquared([]float64{
		kf.stdWeightPosition * w,
		kf.stdWeightPosition * h,
		kf.stdWeightPosition * w,
		kf.stdWeightPosition * h,
	})

	projMean := mat.NewVecDense(measureDim, nil)
	projMean.MulVec(kf.updateMat, mean)

	var hp, hph mat.Dense
	hp.Mul(kf.updateMat, cov)
	hph.Mul(&hp, kf.updateMat.T())
	hph.Add(&hph, innovationCov)

	projCov := mat.NewSymDense(measureDim, nil)
	setSymmetric(projCov, &hph)

	return projMean, projCov
}

// diagSquared returns a symmetric matrix with the squares of std on the
// diagonal
func diagSquared(std []float64) *mat.SymDense {

	m := mat.NewSymDense(len(std), nil)

	for i, v := range std {
		m.SetSym(i, i, v*v)
	}

	return m
}

// setSymmetric copies src into dst averaging the off diagonal pairs so
// numerical drift does not break symmetry
func setSymmetric(dst *mat.SymDense, src mat.Matrix) {

	n := dst.SymmetricDim()

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, (src.At(i, j)+src.At(j, i))/2)
		}
	}
}

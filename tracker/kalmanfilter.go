package tracker

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// detectBox is a measurement vector of center x, center y, aspect ratio
// and height
type detectBox []float64

// stateMean is the 8 element kalman state of position, aspect ratio,
// height and their velocities
type stateMean []float64

// stateCov is the 8x8 kalman state covariance
type stateCov struct {
	*mat.Dense
}

// kalmanFilter implements the constant velocity motion model used by the
// byte tracking backend
type kalmanFilter struct {
	stdWeightPosition float64
	stdWeightVelocity float64
	motionMat         *mat.Dense
	updateMat         *mat.Dense
}

func newKalmanFilter(stdWeightPosition, stdWeightVelocity float64) *kalmanFilter {

	ndim := 4

	// motion matrix is identity with the frame delta in the velocity
	// columns
	motionMat := mat.NewDense(8, 8, nil)

	for i := 0; i < 8; i++ {
		motionMat.Set(i, i, 1.0)
	}

	for i := 0; i < ndim; i++ {
		motionMat.Set(i, ndim+i, 1.0)
	}

	// update matrix projects the state into measurement space
	updateMat := mat.NewDense(4, 8, nil)

	for i := 0; i < 4; i++ {
		updateMat.Set(i, i, 1.0)
	}

	return &kalmanFilter{
		stdWeightPosition: stdWeightPosition,
		stdWeightVelocity: stdWeightVelocity,
		motionMat:         motionMat,
		updateMat:         updateMat,
	}
}

// initiate seeds the state mean and covariance from the first measurement
func (kf *kalmanFilter) initiate(mean stateMean, covariance *stateCov,
	measurement detectBox) {

	copy(mean[:4], measurement[:4])

	// velocity components start at rest
	for i := 4; i < 8; i++ {
		mean[i] = 0
	}

	std := stateMean{
		2 * kf.stdWeightPosition * measurement[3],
		2 * kf.stdWeightPosition * measurement[3],
		1e-2,
		2 * kf.stdWeightPosition * measurement[3],
		10 * kf.stdWeightVelocity * measurement[3],
		10 * kf.stdWeightVelocity * measurement[3],
		1e-5,
		10 * kf.stdWeightVelocity * measurement[3],
	}

	for i, v := range std {
		covariance.Set(i, i, v*v)
	}
}

// predict advances the state mean and covariance one frame under the
// constant velocity model
func (kf *kalmanFilter) predict(mean stateMean, covariance *stateCov) {

	std := stateMean{
		kf.stdWeightPosition * mean[3],
		kf.stdWeightPosition * mean[3],
		1e-2,
		kf.stdWeightPosition * mean[3],
		kf.stdWeightVelocity * mean[3],
		kf.stdWeightVelocity * mean[3],
		1e-5,
		kf.stdWeightVelocity * mean[3],
	}

	motionCov := mat.NewDense(8, 8, nil)

	for i, v := range std {
		motionCov.Set(i, i, v*v)
	}

	predicted := mat.NewVecDense(8, nil)
	predicted.MulVec(kf.motionMat, mat.NewVecDense(8, mean))
	copy(mean, predicted.RawVector().Data)

	cov := covariance.Dense
	cov.Mul(kf.motionMat, cov)
	cov.Mul(cov, kf.motionMat.T())
	cov.Add(cov, motionCov)
}

// update corrects the state mean and covariance with a new measurement
func (kf *kalmanFilter) update(mean stateMean, covariance *stateCov,
	measurement detectBox) error {

	projectedMean, projectedCov := kf.project(mean, covariance)

	// kalman gain through cholesky factorization of the projected
	// covariance
	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("factorize projected covariance")
	}

	b := mat.NewDense(8, 4, nil)
	b.Mul(covariance.Dense, kf.updateMat.T())

	var kalmanGain mat.Dense

	if err := chol.SolveTo(&kalmanGain, b.T()); err != nil {
		return errors.Wrap(err, "compute kalman gain")
	}

	// innovation is the measurement residual
	innovation := mat.NewVecDense(4, nil)

	for i := 0; i < 4; i++ {
		innovation.SetVec(i, measurement[i]-projectedMean[i])
	}

	corrected := mat.NewVecDense(8, nil)
	corrected.MulVec(kalmanGain.T(), innovation)

	for i := 0; i < 8; i++ {
		mean[i] += corrected.AtVec(i)
	}

	temp := mat.NewDense(8, 4, nil)
	temp.Mul(kalmanGain.T(), projectedCov)

	temp2 := mat.NewDense(8, 8, nil)
	temp2.Mul(temp, &kalmanGain)

	newCov := mat.NewDense(8, 8, nil)
	newCov.Sub(covariance.Dense, temp2)

	covariance.Dense = newCov

	return nil
}

// project maps the state mean and covariance into measurement space
func (kf *kalmanFilter) project(mean stateMean,
	covariance *stateCov) (detectBox, *mat.SymDense) {

	std := detectBox{
		kf.stdWeightPosition * mean[3],
		kf.stdWeightPosition * mean[3],
		1e-1,
		kf.stdWeightPosition * mean[3],
	}

	// measurement noise covariance
	innovationCov := mat.NewSymDense(4, nil)

	for i, v := range std {
		innovationCov.SetSym(i, i, v*v)
	}

	projected := mat.NewVecDense(4, nil)
	projected.MulVec(kf.updateMat, mat.NewVecDense(8, mean))

	temp := mat.NewDense(4, 8, nil)
	temp.Mul(kf.updateMat, covariance.Dense)

	temp2 := mat.NewDense(4, 4, nil)
	temp2.Mul(temp, kf.updateMat.T())

	projectedCov := mat.NewSymDense(4, nil)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			projectedCov.SetSym(i, j, temp2.At(i, j))
		}
	}

	projectedCov.AddSym(projectedCov, innovationCov)

	projectedMean := make(detectBox, 4)

	for i := range projectedMean {
		projectedMean[i] = projected.AtVec(i)
	}

	return projectedMean, projectedCov
}

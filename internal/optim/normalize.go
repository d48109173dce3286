package optim

import "math"

// FailureError is the error assigned to trials too short to judge. It is
// large enough that no real trial compares worse.
const FailureError = 1e9

// StepNormalized divides raw by the number of counted ticks. Episodes that
// never got past minSteps score FailureError.
func StepNormalized(raw float64, minSteps, actualSteps int) float64 {
	if actualSteps <= minSteps {
		return FailureError
	}
	return raw / float64(actualSteps-minSteps)
}

// DistanceNormalized is the root of raw per unit distance travelled.
// Like StepNormalized, an episode that never got past minSteps has no
// counted error and scores FailureError.
func DistanceNormalized(raw, distance float64, minSteps, actualSteps int) float64 {
	if distance <= 0 || actualSteps <= minSteps {
		return FailureError
	}
	return math.Sqrt(raw) / distance
}

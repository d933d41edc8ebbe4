package model

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
)

// ageEpsilon keeps the absolute-error gradient defined at zero.
const ageEpsilon = 1e-6

// genderLoss is the per-sample binary cross-entropy of the gender logits.
func genderLoss(desired, logits anydiff.Res, n int) anydiff.Res {
	return anynet.SigmoidCE{}.Cost(desired, logits, n)
}

// ageLoss is the per-sample absolute error, smoothed as sqrt(d^2 + eps).
func ageLoss(desired, actual anydiff.Res) anydiff.Res {
	c := actual.Output().Creator()
	sq := anydiff.Square(anydiff.Sub(actual, desired))
	return anydiff.Pow(anydiff.AddScalar(sq, c.MakeNumeric(ageEpsilon)), c.MakeNumeric(0.5))
}

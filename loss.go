package wgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// WassersteinCriticLoss See ref. https://arxiv.org/abs/1701.07875 (Algorithm 1)
// loss = -reduce(scoreReal) + reduce(scoreFake)
// Minimizing it pushes critic to score real samples high and fake samples low.
// There is no log or sigmoid here: scores are unbounded.
// Default reduction is 'mean'
func WassersteinCriticLoss(scoreReal, scoreFake *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	realReduced, err := reduce(scoreReal, reduction...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reduce real scores")
	}
	lossReal, err := gorgonia.Neg(realReduced)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	lossFake, err := reduce(scoreFake, reduction...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reduce fake scores")
	}
	loss, err := gorgonia.Add(lossReal, lossFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	return loss, nil
}

// WassersteinGeneratorLoss See ref. https://arxiv.org/abs/1701.07875 (Algorithm 1)
// loss = -reduce(scoreFake)
// Generator wants critic to score its output high, so the higher the score is the lower the loss will be.
// Default reduction is 'mean'
func WassersteinGeneratorLoss(scoreFake *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	reduced, err := reduce(scoreFake, reduction...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reduce fake scores")
	}
	loss, err := gorgonia.Neg(reduced)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return loss, nil
}

func reduce(a *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(a)
	case LossReductionMean:
		return gorgonia.Mean(a)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

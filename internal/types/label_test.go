package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type LabelTestSuite struct {
	suite.Suite
}

func TestLabelSuite(t *testing.T) {
	suite.Run(t, new(LabelTestSuite))
}

func (suite *LabelTestSuite) TestForwardReturnByHorizon() {
	label := Label{Asset: "bitcoin", Time: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)}
	label.ForwardReturns[Horizon3d.Index()] = optional.Some(0.06)
	label.Classes[Horizon3d.Index()] = optional.Some(DirectionBuy)

	suite.Equal(0.06, label.ForwardReturn(Horizon3d).Unwrap())
	suite.Equal(DirectionBuy, label.Class(Horizon3d).Unwrap())
	suite.True(label.ForwardReturn(Horizon1d).IsNone())
	suite.True(label.ForwardReturn(Horizon(5)).IsNone())
	suite.False(label.Complete())
	suite.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), label.Key().Day)
}

func (suite *LabelTestSuite) TestComplete() {
	label := Label{Asset: "ethereum"}
	for i := range label.ForwardReturns {
		label.ForwardReturns[i] = optional.Some(0.0)
	}

	suite.True(label.Complete())
}

func (suite *LabelTestSuite) TestClassIndexRoundTrip() {
	suite.Equal(0, DirectionSell.ClassIndex())
	suite.Equal(1, DirectionHold.ClassIndex())
	suite.Equal(2, DirectionBuy.ClassIndex())

	for _, d := range []Direction{DirectionSell, DirectionHold, DirectionBuy} {
		suite.Equal(d, DirectionFromClassIndex(d.ClassIndex()))
	}

	probs := Probabilities{0.1, 0.2, 0.7}
	suite.Equal(0.7, probs.Of(DirectionBuy))
	suite.Equal(0.1, probs.Of(DirectionSell))
}

func (suite *LabelTestSuite) TestParseHorizon() {
	h, err := ParseHorizon("3d")
	suite.NoError(err)
	suite.Equal(Horizon3d, h)

	h, err = ParseHorizon("14")
	suite.NoError(err)
	suite.Equal(Horizon14d, h)

	_, err = ParseHorizon("5d")
	suite.Error(err)

	_, err = ParseHorizon("soon")
	suite.Error(err)
}

func (suite *LabelTestSuite) TestMatrixRowAllNull() {
	row := MatrixRow{Values: []optional.Option[float64]{optional.None[float64](), optional.None[float64]()}}
	suite.True(row.AllNull())

	row.Values[1] = optional.Some(0.0)
	suite.False(row.AllNull())
}

func (suite *LabelTestSuite) TestDateRangeContains() {
	r := DateRange{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	suite.True(r.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
	suite.True(r.Contains(r.From))
	suite.False(r.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

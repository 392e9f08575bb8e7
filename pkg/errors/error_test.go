package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidParameter, "invalid parameter: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Equal("data not found", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeDataNotFound, cause, "no close for asset: %s", "bitcoin")
	suite.NotNil(err)
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Equal("no close for asset: bitcoin", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal("[200] data not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeDataNotFound, "data not found")
	err := Wrap(ErrCodeModelNotFound, "model not found", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeModelNotFound, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromNonArgoError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.True(HasCode(err, ErrCodeInvalidParameter))
	suite.False(HasCode(err, ErrCodeDataNotFound))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	var argoErr *Error
	suite.True(As(err, &argoErr))
	suite.Equal(ErrCodeInvalidParameter, argoErr.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(201), ErrCodeDataIntegrity)
	suite.Equal(ErrorCode(300), ErrCodeModelNotFound)
	suite.Equal(ErrorCode(400), ErrCodeTrainingFailed)
	suite.Equal(ErrorCode(500), ErrCodeInvalidFusionInput)
	suite.Equal(ErrorCode(600), ErrCodeQueryFailed)
}

func (suite *ErrorTestSuite) TestClassOf() {
	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{name: "duplicate key", err: New(ErrCodeDuplicateKey, "dup"), expected: ClassDataIntegrity},
		{name: "lookahead", err: New(ErrCodeLookahead, "peek"), expected: ClassDataIntegrity},
		{name: "invalid config", err: New(ErrCodeInvalidConfiguration, "bad"), expected: ClassConfiguration},
		{name: "no active model", err: New(ErrCodeNoActiveModel, "none"), expected: ClassConfiguration},
		{name: "degenerate", err: New(ErrCodeDegenerateModel, "flat"), expected: ClassDegenerate},
		{name: "transient", err: New(ErrCodeTransient, "timeout"), expected: ClassTransient},
		{name: "wrapped integrity", err: Wrap(ErrCodeImmutableLabel, "changed", errors.New("x")), expected: ClassDataIntegrity},
		{name: "plain error", err: errors.New("plain"), expected: ClassUnknown},
		{name: "nil", err: nil, expected: ClassUnknown},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, ClassOf(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestClassString() {
	suite.Equal("data_integrity", ClassDataIntegrity.String())
	suite.Equal("configuration", ClassConfiguration.String())
	suite.Equal("unknown", Class(99).String())
}

func (suite *ErrorTestSuite) TestIsNotFound() {
	suite.True(IsNotFound(New(ErrCodeModelNotFound, "missing")))
	suite.True(IsNotFound(New(ErrCodeNoActiveModel, "missing")))
	suite.False(IsNotFound(New(ErrCodeQueryFailed, "boom")))
	suite.False(IsNotFound(errors.New("plain")))
}

package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeCanceled ErrorCode = 2

	// Validation and configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidThreshold     ErrorCode = 103
	ErrCodeInvalidWindow        ErrorCode = 104
	ErrCodeInvalidVersion       ErrorCode = 105
	ErrCodeThresholdMismatch    ErrorCode = 106
	ErrCodeUnknownFeature       ErrorCode = 107
	ErrCodeInvalidFusionMode    ErrorCode = 108

	// Data integrity errors (200-299)
	ErrCodeDataNotFound      ErrorCode = 200
	ErrCodeDataIntegrity     ErrorCode = 201
	ErrCodeDuplicateKey      ErrorCode = 202
	ErrCodeLookahead         ErrorCode = 203
	ErrCodeImmutableLabel    ErrorCode = 204
	ErrCodeDuplicateColumn   ErrorCode = 205
	ErrCodeNonPositivePrice  ErrorCode = 206
	ErrCodeSnapshotNotLoaded ErrorCode = 207

	// Model errors (300-399)
	ErrCodeModelNotFound         ErrorCode = 300
	ErrCodeNoActiveModel         ErrorCode = 301
	ErrCodeDegenerateModel       ErrorCode = 302
	ErrCodeArtifactIncompatible  ErrorCode = 303
	ErrCodeArtifactReadFailed    ErrorCode = 304
	ErrCodeArtifactWriteFailed   ErrorCode = 305
	ErrCodeUnsupportedFamily     ErrorCode = 306
	ErrCodeDuplicateModelName    ErrorCode = 307
	ErrCodeRegistrationFailed    ErrorCode = 308
	ErrCodeActivationFailed      ErrorCode = 309
	ErrCodeLockUnavailable       ErrorCode = 310
	ErrCodeInsufficientTrainData ErrorCode = 311

	// Training and evaluation errors (400-499)
	ErrCodeTrainingFailed   ErrorCode = 400
	ErrCodeEvaluationFailed ErrorCode = 401

	// Fusion errors (500-599)
	ErrCodeInvalidFusionInput ErrorCode = 500

	// Storage and job errors (600-699)
	ErrCodeQueryFailed       ErrorCode = 600
	ErrCodeStorageInitFailed ErrorCode = 601
	ErrCodeWriteFailed       ErrorCode = 602
	ErrCodeExportFailed      ErrorCode = 603
	ErrCodePublishFailed     ErrorCode = 604
	ErrCodeTransient         ErrorCode = 605
	ErrCodeDownloadFailed    ErrorCode = 606
)

// Class groups error codes by how a batch job must react to them.
type Class int

const (
	// ClassUnknown is used for errors that carry no code.
	ClassUnknown Class = iota
	// ClassConfiguration means the job must stop and an operator must fix the setup.
	ClassConfiguration
	// ClassDataIntegrity aborts the batch; partial output must not be persisted.
	ClassDataIntegrity
	// ClassDegenerate is reported in metrics and never coerced to a number.
	ClassDegenerate
	// ClassTransient is treated as missing data by the caller.
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassConfiguration:
		return "configuration"
	case ClassDataIntegrity:
		return "data_integrity"
	case ClassDegenerate:
		return "degenerate"
	case ClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ClassOf maps an error to its handling class.
func ClassOf(err error) Class {
	code := GetCode(err)

	switch {
	case code == ErrCodeDegenerateModel:
		return ClassDegenerate
	case code == ErrCodeTransient:
		return ClassTransient
	case code == ErrCodeNoActiveModel, code == ErrCodeArtifactIncompatible:
		return ClassConfiguration
	case code >= 100 && code < 200:
		return ClassConfiguration
	case code >= 200 && code < 300:
		return ClassDataIntegrity
	default:
		return ClassUnknown
	}
}

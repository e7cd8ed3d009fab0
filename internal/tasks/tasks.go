package tasks

// Defines constants for task types used in Asynq.

const (
	// TypeCurationBatch runs the full curation pipeline over a content source.
	TypeCurationBatch = "curate:batch"

	// TypeCalibrationFit refits the calibration model for one content type.
	TypeCalibrationFit = "calibrate:fit"
)

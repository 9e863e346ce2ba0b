package services

import (
	apperrors "scdash/internal/errors"
)

// Service errors
var (
	ErrNoForecast  = apperrors.NewNotFoundError("forecast run")
	ErrNoProcessed = apperrors.NewNotFoundError("processed workbook")
)

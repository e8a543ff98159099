package services

import "errors"

// ===== COMMON SERVICE ERRORS =====

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Session specific errors
	ErrSessionNotFound      = errors.New("attempt session not found")
	ErrSessionAlreadyExists = errors.New("attempt session already exists")

	// Quiz specific errors
	ErrQuizHasNoQuestions = errors.New("quiz has no questions")
)

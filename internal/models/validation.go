package models

// ValidationError reports a form field that failed validation. It is raised
// before any store call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

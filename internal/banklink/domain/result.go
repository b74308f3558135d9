package domain

// FieldError is a blocking, field-scoped validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// FieldWarning is advisory only; it is recorded and surfaced but never
// blocks a payment.
type FieldWarning struct {
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Result accumulates the outcome of one validation stage. Stages append to
// it rather than short-circuiting so the caller always sees every problem.
type Result struct {
	OK       bool           `json:"ok"`
	Errors   []FieldError   `json:"errors,omitempty"`
	Warnings []FieldWarning `json:"warnings,omitempty"`
}

func OKResult() Result {
	return Result{OK: true}
}

func FailResult(errs ...FieldError) Result {
	return Result{OK: false, Errors: errs}
}

// Merge folds another stage result into r, keeping OK only when both sides
// are clean.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.OK = r.OK && other.OK
}

func (r *Result) AddError(field, value, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Value: value, Message: message})
	r.OK = false
}

func (r *Result) AddWarning(field, value, message string) {
	r.Warnings = append(r.Warnings, FieldWarning{Field: field, Value: value, Message: message})
}

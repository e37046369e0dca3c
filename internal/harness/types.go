package harness

import (
	"github.com/roach88/mondai/internal/reconcile"
	"github.com/roach88/mondai/internal/validate"
)

// Result is the outcome of running one scenario.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	// Policy is the table version the scenario ran under.
	Policy string `json:"policy"`

	Report *validate.Report `json:"report"`

	// Reconciled is nil when reconciliation aborted; Err holds the reason.
	Reconciled *reconcile.Result `json:"reconciled,omitempty"`
	Err        error             `json:"-"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{Name: name, Pass: true, Errors: []string{}}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

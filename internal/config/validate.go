package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the flag the finding is about (e.g. "query-dir"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err joins the error-severity issues into one error, nil when there are none.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns a validator that names fields by their flag tag.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("flag")
		})
	})
	return validate
}

// structIssues runs the declarative struct rules on v.
func structIssues(v any) []Issue {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     fe.Field(),
			Message:  ruleMessage(fe),
		})
	}
	return issues
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "required_if":
		return "is required by the selected metrics backend"
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fmt.Sprint(fe.Value()), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

func validateCommon(c Common) []Issue {
	var issues []Issue
	if c.Metrics.Backend == MetricsPrometheus && c.Metrics.PushgatewayURL != "" {
		u, err := url.Parse(c.Metrics.PushgatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "pushgateway-url",
				Message:  "must be an absolute URL such as http://pushgateway:9091",
			})
		}
	}
	if c.Metrics.Backend != MetricsDatadog && (c.Metrics.Namespace != "" || len(c.Metrics.Tags) > 0) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics-namespace",
			Message:  "namespace and tags only apply to the datadog backend",
		})
	}
	return issues
}

// ValidateRun checks a run configuration. It does not touch the filesystem.
func ValidateRun(r Run) []Issue {
	issues := structIssues(r)
	issues = append(issues, validateCommon(r.Common)...)

	if r.QueryDir != "" && r.OutputDir != "" && samePath(r.QueryDir, r.OutputDir) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output-dir",
			Message:  "results will be written into the query directory",
		})
	}
	if r.RerunAll && len(r.Rerun) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "rerun",
			Message:  "ignored because rerun-all is set",
		})
	}
	for _, name := range r.Rerun {
		if !strings.EqualFold(path.Ext(strings.TrimSpace(name)), ".sql") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "rerun",
				Message:  fmt.Sprintf("%q does not name a .sql file and will never match", name),
			})
		}
	}
	return issues
}

// ValidateCreateDB checks a create-db configuration.
func ValidateCreateDB(c CreateDB) []Issue {
	issues := structIssues(c)
	issues = append(issues, validateCommon(c.Common)...)

	if c.Delimiter != "" {
		if r, ok := c.Comma(); !ok || r == '"' || r == '\r' || r == '\n' {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "delimiter",
				Message:  fmt.Sprintf("%q is not a usable single-character delimiter", c.Delimiter),
			})
		}
	}
	return issues
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}

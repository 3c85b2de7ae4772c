package httpapi

import (
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
)

var (
	paymentRoles      = []string{"JOB_SEEKER", "COMPANY", "TEST", "STUDENT", "RECRUITER"}
	subscriptionRoles = []string{"JOB_SEEKER", "COMPANY"}
	identityRoles     = []string{"job_seeker", "student_job_seeker", "recruiter"}
	stripeModes       = []string{"test", "live"}
)

// validator 收集字段错误，消息格式为 "<field> is <problem>"
type validator struct {
	errs []FieldError
}

func (v *validator) add(field, problem string) {
	v.errs = append(v.errs, FieldError{Message: fmt.Sprintf("%s is %s", field, problem)})
}

func (v *validator) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
		return false
	}
	return true
}

func (v *validator) email(field, value string) {
	if !v.required(field, value) {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v.add(field, "an invalid email")
	}
}

func (v *validator) country(field, value string) {
	if len(value) != 2 {
		v.add(field, "expected to be a 2-letter country code")
	}
}

func (v *validator) url(field, value string) {
	if !v.required(field, value) {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.add(field, "an invalid url")
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.add(field, fmt.Sprintf("expected one of %s", strings.Join(allowed, ", ")))
	}
}

// mode 校验可选的 stripeMode
func (v *validator) mode(value string) {
	if value != "" {
		v.oneOf("stripeMode", value, stripeModes)
	}
}

func (v *validator) ok() bool {
	return len(v.errs) == 0
}

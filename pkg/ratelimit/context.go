package ratelimit

import "context"

type subjectKey struct{}

// WithSubject stores the subject to meter in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject stored by WithSubject, or "" if
// the request is not metered.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(subjectKey{}).(string); ok {
		return v
	}
	return ""
}

// AdmitContext admits the subject found in ctx. Requests without a subject
// are not metered.
func (l *Limiter) AdmitContext(ctx context.Context, class ResourceClass) bool {
	if l == nil {
		return true
	}
	subject := SubjectFromContext(ctx)
	if subject == "" {
		return true
	}
	return l.Admit(subject, class)
}

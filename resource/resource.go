// Package resource describes the target of a provisioning attempt and the
// error record a provisioner fills in when the attempt does not yield a
// session.
package resource

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/ssi/session"
)

// MaxNameLength bounds a resource name.
const MaxNameLength = 1024

// MaxWaitSeconds is the largest suggested wait a retry-later failure carries.
const MaxWaitSeconds = 65535

// Provisioning error codes with retry semantics. Any other non-empty code is terminal.
const (
	CodeRetryElsewhere = "retry-elsewhere"
	CodeRetryLater     = "retry-later"
)

// Terminal codes produced by this module's provisioners.
const (
	CodeNotFound = "not-found"
	CodeTimeout  = "timeout"
	CodeStopped  = "stopped"
	CodeInvalid  = "invalid"
	CodeFailed   = "failed"
	CodeDenied   = "denied"
)

// ErrInfo holds provisioning failure details.
//
// For CodeRetryElsewhere Message is the target host and Aux the target port.
// For CodeRetryLater Message is an optional reason and Aux the suggested wait in seconds.
type ErrInfo struct {
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Aux     int    `json:"aux,omitempty" yaml:"aux,omitempty"`
}

// Redirect returns a retry-elsewhere failure.
func Redirect(host string, port int) *ErrInfo {
	return &ErrInfo{Code: CodeRetryElsewhere, Message: host, Aux: port}
}

// Throttle returns a retry-later failure; wait is clamped to [0,MaxWaitSeconds] seconds.
func Throttle(reason string, wait time.Duration) *ErrInfo {
	seconds := int(wait / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if seconds > MaxWaitSeconds {
		seconds = MaxWaitSeconds
	}
	return &ErrInfo{Code: CodeRetryLater, Message: reason, Aux: seconds}
}

// Fail returns a terminal failure.
func Fail(code, format string, args ...interface{}) *ErrInfo {
	return &ErrInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsSet reports whether a failure has been recorded.
func (e *ErrInfo) IsSet() bool {
	return e != nil && e.Code != ""
}

// Redirect returns the alternate endpoint of a retry-elsewhere failure.
func (e *ErrInfo) Redirect() (host string, port int, ok bool) {
	if e == nil || e.Code != CodeRetryElsewhere {
		return "", 0, false
	}
	return e.Message, e.Aux, true
}

// Throttle returns the reason and suggested wait of a retry-later failure.
func (e *ErrInfo) Throttle() (reason string, wait time.Duration, ok bool) {
	if e == nil || e.Code != CodeRetryLater {
		return "", 0, false
	}
	seconds := e.Aux
	if seconds < 0 {
		seconds = 0
	}
	if seconds > MaxWaitSeconds {
		seconds = MaxWaitSeconds
	}
	return e.Message, time.Duration(seconds) * time.Second, true
}

// IsTerminal reports whether the failure must not be retried.
func (e *ErrInfo) IsTerminal() bool {
	if !e.IsSet() {
		return false
	}
	return e.Code != CodeRetryElsewhere && e.Code != CodeRetryLater
}

// Set overwrites the record with other.
func (e *ErrInfo) Set(other *ErrInfo) {
	if other == nil {
		e.Reset()
		return
	}
	*e = *other
}

// Reset clears the record.
func (e *ErrInfo) Reset() {
	*e = ErrInfo{}
}

// Error implements error.
func (e *ErrInfo) Error() string {
	switch e.Code {
	case CodeRetryElsewhere:
		return fmt.Sprintf("%s: %s:%d", e.Code, e.Message, e.Aux)
	case CodeRetryLater:
		if e.Message == "" {
			return fmt.Sprintf("%s: wait %ds", e.Code, e.Aux)
		}
		return fmt.Sprintf("%s: %s, wait %ds", e.Code, e.Message, e.Aux)
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Resource identifies what to provision. The provisioner keeps a reference to
// it until ProvisionDone has been called, so callers must not mutate it before then.
type Resource struct {
	Name    string
	User    string
	Avoid   []string
	Client  string // opaque identity token
	ErrInfo ErrInfo

	done Callback
}

// Callback receives the outcome of a provisioning attempt; sess is nil on
// failure, in which case res.ErrInfo describes why.
type Callback func(res *Resource, sess session.Session)

// New creates a resource. avoid is a comma separated host list and may be empty.
func New(name, avoid, user string, done Callback) *Resource {
	return &Resource{Name: name, User: user, Avoid: ParseAvoid(avoid), done: done}
}

// OnDone replaces the completion callback.
func (r *Resource) OnDone(done Callback) *Resource {
	r.done = done
	return r
}

// ProvisionDone delivers the provisioning outcome to the caller's callback.
func (r *Resource) ProvisionDone(sess session.Session) {
	if r.done != nil {
		r.done(r, sess)
	}
}

// Avoids reports whether host is on the avoid list.
func (r *Resource) Avoids(host string) bool {
	for _, candidate := range r.Avoid {
		if strings.EqualFold(candidate, host) {
			return true
		}
	}
	return false
}

// AvoidList renders the avoid list as a comma separated string.
func (r *Resource) AvoidList() string {
	return strings.Join(r.Avoid, ",")
}

// Clone returns a copy suitable for re-issuing a provisioning attempt: the
// error record is cleared and the avoid list is copied.
func (r *Resource) Clone() *Resource {
	ret := &Resource{Name: r.Name, User: r.User, Client: r.Client, done: r.done}
	ret.Avoid = append([]string(nil), r.Avoid...)
	return ret
}

// ParseAvoid splits a comma separated host list dropping blanks.
func ParseAvoid(list string) []string {
	if list == "" {
		return nil
	}
	var ret []string
	for _, host := range strings.Split(list, ",") {
		if host = strings.TrimSpace(host); host != "" {
			ret = append(ret, host)
		}
	}
	return ret
}

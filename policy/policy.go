// Package policy provides a declarative admission check a provisioner runs
// before opening a session. A nil *Policy admits everything.
package policy

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/viant/ssi/resource"
)

// Admission modes.
const (
	ModeAllow    = "allow"    // admit (default)
	ModeDeny     = "deny"     // refuse every resource
	ModeRedirect = "redirect" // send the client to Target
	ModeThrottle = "throttle" // ask the client to come back after Wait
)

// Policy decides whether a resource may be provisioned here.
//
//   - Mode controls the outcome for admitted names.
//   - AllowList, BlockList filter names regardless of Mode; names compare
//     case-insensitively.
type Policy struct {
	Mode      string        `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string      `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string      `json:"block,omitempty" yaml:"block,omitempty"`
	Target    string        `json:"target,omitempty" yaml:"target,omitempty"` // host:port used by redirect
	Wait      time.Duration `json:"wait,omitempty" yaml:"wait,omitempty"`
	Reason    string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// IsAllowed checks the allow and block lists.
func (p *Policy) IsAllowed(name string) bool {
	if p == nil {
		return true
	}
	for _, blocked := range p.BlockList {
		if strings.EqualFold(blocked, name) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if strings.EqualFold(allowed, name) {
			return true
		}
	}
	return false
}

// Admit returns nil when res may be provisioned, otherwise the failure to
// report to the client.
func (p *Policy) Admit(res *resource.Resource) *resource.ErrInfo {
	if p == nil {
		return nil
	}
	if !p.IsAllowed(res.Name) {
		return resource.Fail(resource.CodeDenied, "%v is not allowed", res.Name)
	}
	switch strings.ToLower(p.Mode) {
	case "", ModeAllow:
		return nil
	case ModeDeny:
		return resource.Fail(resource.CodeDenied, "provisioning disabled")
	case ModeRedirect:
		host, port, err := p.target()
		if err != nil {
			return resource.Fail(resource.CodeFailed, "%v", err)
		}
		return resource.Redirect(host, port)
	case ModeThrottle:
		return resource.Throttle(p.Reason, p.Wait)
	}
	return resource.Fail(resource.CodeFailed, "unsupported admission mode %q", p.Mode)
}

// Validate checks the declarative settings.
func (p *Policy) Validate() error {
	if p == nil {
		return nil
	}
	switch strings.ToLower(p.Mode) {
	case "", ModeAllow, ModeDeny, ModeThrottle:
	case ModeRedirect:
		if _, _, err := p.target(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("admission.mode: unsupported %q", p.Mode)
	}
	if p.Wait < 0 {
		return fmt.Errorf("admission.wait must be >= 0")
	}
	return nil
}

func (p *Policy) target() (string, int, error) {
	host, portText, err := net.SplitHostPort(p.Target)
	if err != nil {
		return "", 0, fmt.Errorf("admission.target %q: %w", p.Target, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 || host == "" {
		return "", 0, fmt.Errorf("admission.target %q: invalid host:port", p.Target)
	}
	return host, port, nil
}

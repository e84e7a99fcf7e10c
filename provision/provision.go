// Package provision defines how a caller obtains a session for a named
// resource. Provisioning is asynchronous: the outcome is delivered through
// the resource's completion callback, either as a session or as an ErrInfo
// that may ask the caller to retry elsewhere or later.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/ssi/resource"
)

// Service provisions sessions.
type Service interface {
	// Provision starts provisioning res; res.ProvisionDone is called exactly
	// once with the outcome. timeout is in seconds, zero selects the default.
	Provision(ctx context.Context, res *resource.Resource, timeout uint16)

	// Stop makes the service unusable. It returns false, with no effect,
	// while sessions are still outstanding.
	Stop() bool
}

// Host is implemented by services that know the host name they serve.
type Host interface {
	Host() string
}

var (
	// ErrNameRequired is returned for a resource without a name.
	ErrNameRequired = errors.New("provision: resource name is required")

	// ErrNameTooLong is returned for a name above resource.MaxNameLength.
	ErrNameTooLong = errors.New("provision: resource name too long")

	// ErrAttemptsExhausted is returned by Acquire when every attempt was redirected or throttled.
	ErrAttemptsExhausted = errors.New("provision: attempts exhausted")

	// ErrNoLocator is returned by Acquire on a redirect without a Locator.
	ErrNoLocator = errors.New("provision: redirect without locator")
)

// Validate checks the parts of res a provisioner relies on; it never touches res.ErrInfo.
func Validate(res *resource.Resource) error {
	if res == nil || res.Name == "" {
		return ErrNameRequired
	}
	if len(res.Name) > resource.MaxNameLength {
		return fmt.Errorf("%w: %d > %d", ErrNameTooLong, len(res.Name), resource.MaxNameLength)
	}
	return nil
}

package invite

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	OperationInvite  = "invite"
	OperationDelete  = "delete"
	OperationRecover = "recover"
)

// ProviderError captures normalized identity provider response details.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	} else if e.Operation != "" {
		scope = e.Operation
	}

	if e.Description != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s failed: status %d", scope, e.Status)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata returns the non empty fields as a map suitable for go-errors metadata.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}

	return meta
}

// DeletionPolicy decides which provider deletion failures mean the account
// is already gone.
type DeletionPolicy struct {
	AbsentStatuses []int
	AbsentCodes    []string
}

// DefaultDeletionPolicy treats 404 and the common "user not found" codes as absent.
func DefaultDeletionPolicy() DeletionPolicy {
	return DeletionPolicy{
		AbsentStatuses: []int{http.StatusNotFound},
		AbsentCodes:    []string{"user_not_found", "not_found", "inexistent_user"},
	}
}

// IsAccountAbsent reports whether err is an allow-listed "already absent" failure.
// Only *ProviderError values are considered.
func (p DeletionPolicy) IsAccountAbsent(err error) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) || perr == nil {
		return false
	}

	for _, status := range p.AbsentStatuses {
		if status != 0 && perr.Status == status {
			return true
		}
	}

	code := strings.ToLower(strings.TrimSpace(perr.Code))
	if code == "" {
		return false
	}
	for _, allowed := range p.AbsentCodes {
		if strings.EqualFold(code, strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func wrapProviderError(base *goerrors.Error, provider, operation string, err error, extra map[string]any) error {
	if base == nil {
		return err
	}

	meta := map[string]any{}
	if provider != "" {
		meta["provider"] = provider
	}
	if operation != "" {
		meta["operation"] = operation
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	for k, v := range extra {
		meta[k] = v
	}

	return newError(base, err, meta)
}

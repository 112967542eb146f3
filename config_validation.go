package netidentity

import (
	"fmt"
	"reflect"
	"strings"
)

func (c *config) validate() error {
	if c.maxChainLength <= 0 {
		return fmt.Errorf("maxChainLength must be > 0, got %d", c.maxChainLength)
	}
	if c.maxValueLength <= 0 {
		return fmt.Errorf("maxValueLength must be > 0, got %d", c.maxValueLength)
	}
	if c.reverseDNS {
		if c.lookupTimeout <= 0 {
			return fmt.Errorf("lookupTimeout must be > 0 when reverse DNS is enabled, got %s", c.lookupTimeout)
		}
		if isNilInterface(c.hostLookup) {
			return fmt.Errorf("host lookup cannot be nil when reverse DNS is enabled")
		}
	}

	if err := validateHeaderNames("IP", headerSpecNames(c.ipHeaders)); err != nil {
		return err
	}
	if err := validateHeaderNames("identity", c.identityHeaders); err != nil {
		return err
	}
	if err := validateHeaderNames("certificate subject", c.certSubjectHeaders); err != nil {
		return err
	}

	if isNilInterface(c.logger) {
		return fmt.Errorf("logger cannot be nil")
	}
	if isNilInterface(c.metrics) {
		return fmt.Errorf("metrics cannot be nil")
	}
	return nil
}

func validateHeaderNames(kind string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			return fmt.Errorf("%s header names cannot be empty", kind)
		}
		if strings.ContainsAny(normalized, " \t:") {
			return fmt.Errorf("invalid %s header name %q", kind, name)
		}
		if _, ok := seen[normalized]; ok {
			return fmt.Errorf("duplicate %s header %q", kind, name)
		}
		seen[normalized] = struct{}{}
	}
	return nil
}

func isNilInterface(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

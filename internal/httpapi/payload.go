package httpapi

import (
	"errors"
	"fmt"
	"net/netip"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/schnitzel/netidentity"
)

// selfReportRequest is the body of POST /api/network/merge.
type selfReportRequest struct {
	PublicIPAddress  string `json:"publicIpAddress" validate:"omitempty,max=64,ip_or_sentinel"`
	PrivateIPAddress string `json:"privateIpAddress" validate:"omitempty,max=64,ip_or_sentinel"`
	ComputerName     string `json:"computerName" validate:"omitempty,max=255"`
	Username         string `json:"username" validate:"omitempty,max=255"`
}

func (p selfReportRequest) selfReport() netidentity.SelfReport {
	return netidentity.NewSelfReport(p.PublicIPAddress, p.PrivateIPAddress, p.ComputerName, p.Username)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("ip_or_sentinel", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		if value == "" || netidentity.IsSelfReportSentinel(value) {
			return true
		}
		_, err := netip.ParseAddr(value)
		return err == nil
	})

	return v
}

// validationMessage renders the first field failure for the client.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "ip_or_sentinel":
		return fmt.Sprintf("%s must be an IP address", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

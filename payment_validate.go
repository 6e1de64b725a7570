package ucp

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openucp/ucp-go/secret"
)

var validate = newValidator()

// Validate ensures the tokenize payload complies with the UCP payment token
// schema: go-playground/validator rules on the envelope, then on the
// concrete credential selected by the union discriminator.
func (r TokenizeRequestPayload) Validate() error {
	if err := validate.Struct(r); err != nil {
		return normalizeValidationError(err)
	}
	disc, err := r.PaymentMethod.Discriminator()
	if err != nil {
		return errors.New("payment_method.type is required")
	}
	switch disc {
	case PaymentMethodTypeCard:
		card, err := r.PaymentMethod.AsCardCredentialPayload()
		if err != nil {
			return errors.New("payment_method is not a valid card credential")
		}
		if err := validate.Struct(card); err != nil {
			return normalizeValidationError(err)
		}
	case PaymentMethodTypeGooglePay:
		wallet, err := r.PaymentMethod.AsGooglePayCredentialPayload()
		if err != nil {
			return errors.New("payment_method is not a valid google_pay credential")
		}
		if err := validate.Struct(wallet); err != nil {
			return normalizeValidationError(err)
		}
	case PaymentMethodTypeApplePay:
		wallet, err := r.PaymentMethod.AsApplePayCredentialPayload()
		if err != nil {
			return errors.New("payment_method is not a valid apple_pay credential")
		}
		if err := validate.Struct(wallet); err != nil {
			return normalizeValidationError(err)
		}
	case "":
		return errors.New("payment_method.type is required")
	default:
		// Unknown types reach the provider, which owns the allow-list
		// and answers with unsupported_payment_method.
	}
	return nil
}

// Validate ensures the detokenize payload satisfies schema constraints.
func (r DetokenizeRequestPayload) Validate() error {
	if err := validate.Struct(r); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	// Validate wrapped sensitive values as their underlying string so
	// required/len/numeric rules apply without revealing the material in
	// validator internals beyond the check itself.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if value, ok := field.Interface().(secret.Value); ok {
			return value.Reveal()
		}
		return nil
	}, secret.Value{})

	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	first := validationErrs[0]
	fieldPath := jsonPath(first)
	message := validationMessage(first)
	return fmt.Errorf("%s %s", fieldPath, message)
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "eq":
		return fmt.Sprintf("must equal %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

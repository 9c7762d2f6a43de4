package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	validate *validator.Validate

	// element index inside a dive namespace, e.g. addresses[3]
	indexRe = regexp.MustCompile(`\[(\d+)\]$`)

	// tags whose error code is not simply ERR_<TAG>
	tagCodes = map[string]string{
		"evmaddr": "ERR_INVALID_ADDRESS",
		"uuid":    "ERR_INVALID_ID",
		"oneof":   "ERR_UNSUPPORTED",
	}
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(fieldName)
	_ = validate.RegisterValidation("evmaddr", func(fl validator.FieldLevel) bool {
		return common.IsHexAddress(strings.TrimSpace(fl.Field().String()))
	})
}

// fieldName reports fields by their wire name (json, query or path tag).
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "query", "param"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ReadAndValidateRequest binds the request, applies default tags and runs
// validation. It returns nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return validatorDefaultRules(err)
	}

	if err := defaults.Set(req); err != nil {
		return validatorDefaultRules(err)
	}

	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return validatorDefaultRules(err)
	}

	return nil
}

func validatorDefaultRules(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make([]ValidationError, 0, len(validationErrors))
		for _, e := range validationErrors {
			code, ok := tagCodes[e.Tag()]
			if !ok {
				code = "ERR_" + strings.ToUpper(e.Tag())
			}
			field, params := fieldAndIndex(e)
			errs = append(errs, ValidationError{
				Code:    code,
				Field:   field,
				Message: getErrorMessage(e, field),
				Params:  params,
			})
		}
		return errs
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{
			Code:    "ERR_MALFORMED_REQUEST",
			Message: fmt.Sprintf("%v", he.Message),
		}}
	}

	return []ValidationError{{
		Code:    "ERR_UNKNOWN",
		Message: err.Error(),
	}}
}

// fieldAndIndex strips a dive index off the field name and returns it as
// the "index" param.
func fieldAndIndex(fe validator.FieldError) (string, map[string]interface{}) {
	params := getErrorParams(fe)
	field := fe.Field()
	if m := indexRe.FindStringSubmatch(field); m != nil {
		i, _ := strconv.Atoi(m[1])
		params["index"] = i
		field = strings.TrimSuffix(field, m[0])
	}
	if len(params) == 0 {
		params = nil
	}
	return field, params
}

func getErrorMessage(fe validator.FieldError, field string) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "evmaddr":
		return fmt.Sprintf("%s must be 40 hex characters with optional 0x prefix", field)
	case "uuid":
		return fmt.Sprintf("%s must be a job id", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s item(s)", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func getErrorParams(fe validator.FieldError) map[string]interface{} {
	params := make(map[string]interface{})

	switch fe.Tag() {
	case "min", "gte":
		params["min"] = fe.Param()
	case "max", "lte":
		params["max"] = fe.Param()
	case "oneof":
		params["options"] = strings.Split(fe.Param(), " ")
	}

	return params
}

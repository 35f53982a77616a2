package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/internal/domain"
)

var unitIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateUnitParameters checks the parameters of a unit type before any
// unit is built, so a plan fails as a whole with a readable message.
// The units decode their parameters strictly again when created.
func ValidateUnitParameters(unitType string, params yaml.Node) error {
	var paramMap map[string]any
	if err := params.Decode(&paramMap); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	if err := validateOverrideParams(paramMap); err != nil {
		return err
	}
	switch unitType {
	case "score", "decision_maker":
		return nil
	case "item_robustness", "expert_robustness":
		return validateRobustnessParams(paramMap)
	default:
		return fmt.Errorf("unknown unit type: %s", unitType)
	}
}

// validateOverrideParams checks the calculation settings a unit may override.
func validateOverrideParams(params map[string]any) error {
	if w, ok := params["weight"]; ok {
		s, ok := w.(string)
		if !ok {
			return fmt.Errorf("weight must be a string")
		}
		if _, err := domain.ParseWeightType(s); err != nil {
			return err
		}
	}
	if a, ok := params["alpha"]; ok {
		v, ok := number(a)
		if !ok {
			return fmt.Errorf("alpha must be a number")
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("alpha must be between 0 and 1")
		}
	}
	for _, key := range []string{"overshoot", "calpower"} {
		if x, ok := params[key]; ok {
			v, ok := number(x)
			if !ok {
				return fmt.Errorf("%s must be a number", key)
			}
			if v < 0 {
				return fmt.Errorf("%s must not be negative", key)
			}
		}
	}
	return nil
}

func validateRobustnessParams(params map[string]any) error {
	minEx, maxEx := 0, 1
	if v, ok := params["min_exclude"]; ok {
		n, ok := v.(int)
		if !ok || n < 0 {
			return fmt.Errorf("min_exclude must be a non-negative integer")
		}
		minEx = n
	}
	if v, ok := params["max_exclude"]; ok {
		n, ok := v.(int)
		if !ok || n < 0 {
			return fmt.Errorf("max_exclude must be a non-negative integer")
		}
		maxEx = n
	}
	if minEx > maxEx {
		return fmt.Errorf("min_exclude %d is larger than max_exclude %d", minEx, maxEx)
	}
	return nil
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// RegisterPlanValidators registers the custom struct tags used by plan
// configurations.
func RegisterPlanValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("unitid", validateUnitID); err != nil {
		return fmt.Errorf("failed to register unitid validator: %w", err)
	}
	return nil
}

// validateUnitID accepts letters, digits, '_' and '-', starting with a
// letter or digit.
func validateUnitID(fl validator.FieldLevel) bool {
	return unitIDPattern.MatchString(fl.Field().String())
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

var settingsValidator = validator.New()

// validateSettings rejects an unknown weight type with
// domain.ErrInvalidWeightType and any other bad field with a validation
// error.
func validateSettings(s domain.CalculationSettings) error {
	if _, err := domain.ParseWeightType(string(s.Weight)); err != nil {
		return err
	}
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid calculation settings: %w", err)
	}
	return nil
}

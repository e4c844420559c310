package validator

import (
	"errors"
	"fmt"
	"reflect"
	"roomly/pkg/logger"
	"roomly/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks a create or update body. Callers may not choose the id or
// the status, and the date range must span at least one day.
func (v *ReservationValidator) Validate(req *model.ReservationRequest) error {
	var errs ValidationErrors

	if req.ID != nil {
		errs = append(errs, ValidationError{Field: "id", Message: "id should be empty"})
	}
	if req.Status != "" {
		errs = append(errs, ValidationError{Field: "status", Message: "status should be empty"})
	}

	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		errs = append(errs, v.translateValidationErrors(validationErrs)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return validateRange(req.StartDate, req.EndDate)
}

func (v *ReservationValidator) ValidateAvailability(req *model.AvailabilityRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return validateRange(req.StartDate, req.EndDate)
}

func validateRange(startDate, endDate string) error {
	start, err := model.ParseDate(startDate)
	if err != nil {
		return ValidationErrors{{Field: "start_date", Message: err.Error()}}
	}
	end, err := model.ParseDate(endDate)
	if err != nil {
		return ValidationErrors{{Field: "end_date", Message: err.Error()}}
	}
	if !end.After(start) {
		return ValidationErrors{{
			Field:   "end_date",
			Message: "End date has to be at least 1 more day than start date",
		}}
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

package merchant

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/example/menu-scheduler/internal/calendar"
	"github.com/example/menu-scheduler/internal/config"
)

// file is the on-disk shape of the merchants file.
type file struct {
	Merchants map[string]merchantSpec `yaml:"merchants" validate:"required,min=1,dive"`
}

type merchantSpec struct {
	Name          string               `yaml:"name" validate:"required"`
	MerchantID    string               `yaml:"merchant_id" validate:"required_without=MerchantIDEnv"`
	MerchantIDEnv string               `yaml:"merchant_id_env" validate:"required_without=MerchantID"`
	Timezone      string               `yaml:"timezone" validate:"required"`
	ClosedDays    []string             `yaml:"closed_days" validate:"dive,dayspec"`
	AlwaysVisible []categorySpec       `yaml:"always_visible" validate:"dive"`
	Groups        map[string]groupSpec `yaml:"groups" validate:"required,min=1,dive"`
	Events        map[string]eventSpec `yaml:"events" validate:"required,min=1,dive"`
}

type categorySpec struct {
	ID        string `yaml:"id" validate:"required"`
	Name      string `yaml:"name" validate:"required"`
	SortOrder int    `yaml:"sort_order"`
	ViewType  string `yaml:"view_type" validate:"omitempty,oneof=list grid"`
}

type windowSpec struct {
	Start string `yaml:"start" validate:"required,clock"`
	End   string `yaml:"end" validate:"required,clock"`
}

type groupSpec struct {
	Days       []string                `yaml:"days" validate:"dive,dayspec"`
	Window     *windowSpec             `yaml:"window" validate:"omitempty"`
	Categories []categorySpec          `yaml:"categories" validate:"dive"`
	ByDay      map[string]categorySpec `yaml:"by_day" validate:"dive,keys,weekday,endkeys"`
}

type eventSpec struct {
	Description string     `yaml:"description"`
	Cron        string     `yaml:"cron" validate:"omitempty,schedule_cron"`
	Steps       []stepSpec `yaml:"steps" validate:"required,min=1,dive"`
}

type stepSpec struct {
	Label  string   `yaml:"label"`
	Group  string   `yaml:"group" validate:"required"`
	Action string   `yaml:"action" validate:"required,oneof=show hide rotate sync"`
	Day    string   `yaml:"day" validate:"omitempty,oneof=today next all"`
	OnDays []string `yaml:"on_days" validate:"dive,dayspec"`
}

var (
	validate   *validator.Validate
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("weekday", validateWeekday)
	_ = validate.RegisterValidation("dayspec", validateDaySpec)
	_ = validate.RegisterValidation("clock", validateClock)
	_ = validate.RegisterValidation("schedule_cron", validateCron)
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, err := calendar.ParseWeekday(fl.Field().String())
	return err == nil
}

func validateDaySpec(fl validator.FieldLevel) bool {
	_, err := calendar.ParseDays([]string{fl.Field().String()})
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := calendar.ParseClock(fl.Field().String())
	return err == nil
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := cronParser.Parse(fl.Field().String())
	return err == nil
}

// Load reads and validates the merchants file at path.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "MERCHANTS_FILE", Reason: err.Error()}
	}
	defer f.Close()

	reg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a merchants file, validates it and builds one rule set per
// merchant. Unknown keys are rejected.
func Parse(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &config.ConfigurationError{Key: "merchants", Reason: "file is empty"}
		}
		return nil, &config.ConfigurationError{Key: "merchants", Reason: err.Error()}
	}

	if err := validate.Struct(f); err != nil {
		return nil, &config.ConfigurationError{Key: "merchants", Reason: formatValidation(err)}
	}
	return build(f)
}

func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "file.")
		switch fe.Tag() {
		case "required", "required_without":
			out = append(out, field+" is required")
		case "min":
			out = append(out, field+" must not be empty")
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of %s (got %q)", field, strings.Join(strings.Fields(fe.Param()), ", "), fe.Value()))
		case "weekday", "dayspec":
			out = append(out, fmt.Sprintf("%s: %q is not a weekday", field, fe.Value()))
		case "clock":
			out = append(out, fmt.Sprintf("%s: %q is not a HH:MM time", field, fe.Value()))
		case "schedule_cron":
			out = append(out, fmt.Sprintf("%s: %q is not a cron expression", field, fe.Value()))
		default:
			out = append(out, field+" is invalid")
		}
	}
	return strings.Join(out, "; ")
}

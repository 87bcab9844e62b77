package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

type Validator interface {
	Validate(value interface{}) error
}

// Form validates a request struct field by field, keyed by json tag.
type Form struct {
	validators map[string]Validator
}

func MustForm(validators map[string]Validator) *Form {
	if len(validators) == 0 {
		panic("empty form validators")
	}
	return &Form{validators: validators}
}

func (f *Form) Validate(value interface{}) error {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("request is nil")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return fmt.Errorf("expect struct, got %v", v.Kind())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" {
			continue
		}

		name := strings.Split(tag, ",")[0]
		fieldValidator, ok := f.validators[name]
		if !ok {
			continue
		}

		if err := fieldValidator.Validate(v.Field(i).Interface()); err != nil {
			return fmt.Errorf("%s: %v", name, err)
		}
	}

	return nil
}

type String struct {
	Optional bool
	MinLen   int
	MaxLen   int
	Regex    *regexp.Regexp
	In       []string
}

func (v *String) Validate(value interface{}) error {
	s, ok := value.(*string)
	if !ok {
		return fmt.Errorf("expect string, got %T", value)
	}

	if s == nil {
		if v.Optional {
			return nil
		}
		return fmt.Errorf("is required")
	}

	if v.MinLen > 0 && len(*s) < v.MinLen {
		return fmt.Errorf("min length is %d", v.MinLen)
	}

	if v.MaxLen > 0 && len(*s) > v.MaxLen {
		return fmt.Errorf("max length is %d", v.MaxLen)
	}

	if v.Regex != nil && !v.Regex.MatchString(*s) {
		return fmt.Errorf("invalid format")
	}

	if len(v.In) > 0 {
		for _, allow := range v.In {
			if *s == allow {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", v.In)
	}

	return nil
}

type UInt64 struct {
	Optional bool
	Min      *uint64
	Max      *uint64
}

func (v *UInt64) Validate(value interface{}) error {
	ui, ok := value.(*uint64)
	if !ok {
		return fmt.Errorf("expect uint64, got %T", value)
	}

	if ui == nil {
		if v.Optional {
			return nil
		}
		return fmt.Errorf("is required")
	}

	if v.Min != nil && *ui < *v.Min {
		return fmt.Errorf("min value is %d", *v.Min)
	}

	if v.Max != nil && *ui > *v.Max {
		return fmt.Errorf("max value is %d", *v.Max)
	}

	return nil
}

type UInt32 struct {
	Optional bool
}

func (v *UInt32) Validate(value interface{}) error {
	ui, ok := value.(*uint32)
	if !ok {
		return fmt.Errorf("expect uint32, got %T", value)
	}

	if ui == nil && !v.Optional {
		return fmt.Errorf("is required")
	}

	return nil
}

type Slice struct {
	Optional  bool
	MinLen    int
	MaxLen    int
	Validator Validator
}

func (v *Slice) Validate(value interface{}) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return fmt.Errorf("expect slice, got %T", value)
	}

	if rv.Len() == 0 && v.Optional {
		return nil
	}

	if v.MinLen > 0 && rv.Len() < v.MinLen {
		return fmt.Errorf("min length is %d", v.MinLen)
	}

	if v.MaxLen > 0 && rv.Len() > v.MaxLen {
		return fmt.Errorf("max length is %d", v.MaxLen)
	}

	if v.Validator != nil {
		for i := 0; i < rv.Len(); i++ {
			if err := v.Validator.Validate(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("[%d]: %v", i, err)
			}
		}
	}

	return nil
}

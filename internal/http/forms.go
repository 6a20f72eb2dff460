package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"semaphore/portal/internal/model"
)

const (
	notBlankTag  = "notblank"
	knownRoleTag = "known_role"
)

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	Name     string   `form:"name" validate:"notblank,max=100"`
	Surname  string   `form:"surname" validate:"notblank,max=100"`
	Email    string   `form:"email" validate:"required,email"`
	Password string   `form:"password" validate:"required,min=8"`
	Roles    []string `form:"roles" validate:"required,min=1,dive,known_role"`
}

type roleForm struct {
	Role string `form:"role" validate:"required,known_role"`
}

type formValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newFormValidator() (*formValidator, error) {
	validate := validator.New()

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, err
	}

	// Messages name the form field, not the Go field.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation(notBlankTag, notBlank); err != nil {
		return nil, err
	}
	if err := validate.RegisterValidation(knownRoleTag, knownRole); err != nil {
		return nil, err
	}
	custom := map[string]string{
		notBlankTag:  "{0} cannot be blank",
		knownRoleTag: "{0} must be student or teacher",
	}
	for tag, text := range custom {
		tag, text := tag, text
		err := validate.RegisterTranslation(tag, translator, func(t ut.Translator) error {
			return t.Add(tag, text, true)
		}, func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		})
		if err != nil {
			return nil, err
		}
	}
	return &formValidator{validate: validate, translator: translator}, nil
}

// Check returns the validation problems as one sentence, empty when the form is valid.
func (v *formValidator) Check(form interface{}) string {
	err := v.validate.Struct(form)
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(fieldErrs))
	seen := map[string]bool{}
	for _, fe := range fieldErrs {
		msg := fe.Translate(v.translator)
		if seen[msg] {
			continue
		}
		seen[msg] = true
		messages = append(messages, msg)
	}
	return strings.Join(messages, ", ")
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func knownRole(fl validator.FieldLevel) bool {
	_, ok := model.ParseRole(fl.Field().String())
	return ok
}

func parseLoginForm(r *http.Request) loginForm {
	return loginForm{
		Email:    strings.TrimSpace(strings.ToLower(r.PostFormValue("email"))),
		Password: r.PostFormValue("password"),
	}
}

func parseRegisterForm(r *http.Request) registerForm {
	form := registerForm{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Surname:  strings.TrimSpace(r.PostFormValue("surname")),
		Email:    strings.TrimSpace(strings.ToLower(r.PostFormValue("email"))),
		Password: r.PostFormValue("password"),
	}
	seen := map[string]bool{}
	for _, raw := range r.PostForm["roles"] {
		role := strings.TrimSpace(strings.ToLower(raw))
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		form.Roles = append(form.Roles, role)
	}
	return form
}

func parseRoleForm(r *http.Request) roleForm {
	return roleForm{Role: strings.TrimSpace(strings.ToLower(r.PostFormValue("role")))}
}

// Package response задает общий формат JSON-ответов HTTP API и хелперы для их
// записи. Ошибки валидации раскладываются по полям, пути к полям даются в
// терминах JSON, а не Go-структур.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Response встраивается в ответы всех обработчиков. Fields заполняется только
// для ошибок валидации.
type Response struct {
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError - одно нарушенное правило валидации. Field - путь вида
// products[0].product_id, Rule - тег валидатора.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func OK() Response {
	return Response{Status: StatusOK}
}

func Error(msg string) Response {
	return Response{Status: StatusError, Error: msg}
}

// NewValidator возвращает валидатор, который называет поля по json-тегам.
// Поля без json-имени называются как в Go.
func NewValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// ValidationError собирает ответ из ошибок валидатора: по записи в Fields на
// каждое нарушение и общее сообщение в Error.
func ValidationError(errs validator.ValidationErrors) Response {
	fields := make([]FieldError, 0, len(errs))
	msgs := make([]string, 0, len(errs))

	for _, fe := range errs {
		path := fieldPath(fe)
		msg := describe(fe, path)

		fields = append(fields, FieldError{Field: path, Rule: fe.ActualTag(), Message: msg})
		msgs = append(msgs, msg)
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(msgs, ", "),
		Fields: fields,
	}
}

// Render пишет v в формате JSON с кодом status.
func Render(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// Fail пишет Error(msg) с кодом status.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	Render(w, r, status, Error(msg))
}

// Invalid отвечает 400 на ошибку validate.Struct. Ошибки валидатора
// раскладываются по полям, любая другая ошибка дает общее сообщение.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		Render(w, r, http.StatusBadRequest, ValidationError(verrs))
		return
	}

	Fail(w, r, http.StatusBadRequest, "invalid request")
}

// fieldPath отрезает имя корневой структуры: OrderSnapshot.customer.name
// превращается в customer.name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok && rest != "" {
		return rest
	}

	return fe.Field()
}

func describe(fe validator.FieldError, path string) string {
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("field %s is a required field", path)
	case "gte":
		return fmt.Sprintf("field %s must be at least %s", path, fe.Param())
	case "lte":
		return fmt.Sprintf("field %s must be at most %s", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("field %s must be one of [%s]", path, fe.Param())
	default:
		return fmt.Sprintf("field %s is not valid", path)
	}
}

package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Qty  int    `json:"qty" validate:"gte=1"`
	Code string `json:"code,omitempty" validate:"oneof=a b"`
}

type form struct {
	Name   string `json:"name" validate:"required"`
	Lines  []line `json:"lines" validate:"dive"`
	Secret string `json:"-" validate:"required"`
	Plain  int    `validate:"lte=3"`
}

func TestValidationErrorUsesJSONPaths(t *testing.T) {
	err := NewValidator().Struct(form{
		Lines:  []line{{Qty: 2, Code: "a"}, {Qty: 0, Code: "c"}},
		Secret: "x",
		Plain:  5,
	})

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	got := ValidationError(verrs)

	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, []FieldError{
		{Field: "name", Rule: "required", Message: "field name is a required field"},
		{Field: "lines[1].qty", Rule: "gte", Message: "field lines[1].qty must be at least 1"},
		{Field: "lines[1].code", Rule: "oneof", Message: "field lines[1].code must be one of [a b]"},
		{Field: "Plain", Rule: "lte", Message: "field Plain must be at most 3"},
	}, got.Fields)
	assert.Equal(t,
		"field name is a required field, field lines[1].qty must be at least 1, "+
			"field lines[1].code must be one of [a b], field Plain must be at most 3",
		got.Error)
}

func TestRenderHelpers(t *testing.T) {
	cases := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		want       Response
	}{
		{
			name:       "ok",
			write:      func(w http.ResponseWriter, r *http.Request) { Render(w, r, http.StatusOK, OK()) },
			wantStatus: http.StatusOK,
			want:       Response{Status: StatusOK},
		},
		{
			name:       "fail",
			write:      func(w http.ResponseWriter, r *http.Request) { Fail(w, r, http.StatusNotFound, "order not found") },
			wantStatus: http.StatusNotFound,
			want:       Response{Status: StatusError, Error: "order not found"},
		},
		{
			name:       "invalid with a plain error",
			write:      func(w http.ResponseWriter, r *http.Request) { Invalid(w, r, errors.New("boom")) },
			wantStatus: http.StatusBadRequest,
			want:       Response{Status: StatusError, Error: "invalid request"},
		},
		{
			name: "invalid with validator errors",
			write: func(w http.ResponseWriter, r *http.Request) {
				Invalid(w, r, NewValidator().Struct(line{Qty: 0, Code: "a"}))
			},
			wantStatus: http.StatusBadRequest,
			want: Response{
				Status: StatusError,
				Error:  "field qty must be at least 1",
				Fields: []FieldError{{Field: "qty", Rule: "gte", Message: "field qty must be at least 1"}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.write(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

			var got Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

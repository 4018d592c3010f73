package binder

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
)

// Path copies chi route parameters into string fields tagged `path:"name"`.
func Path() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a non-nil pointer to struct", ErrFailedToParsePath)
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rt.NumField() {
			name := rt.Field(i).Tag.Get("path")
			if name == "" || name == "-" {
				continue
			}
			field := rv.Field(i)
			if field.Kind() != reflect.String || !field.CanSet() {
				return fmt.Errorf("%w: field %s must be a string", ErrFailedToParsePath, rt.Field(i).Name)
			}
			field.SetString(chi.URLParam(r, name))
		}
		return nil
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds and validates the body, rendering the validation envelope
// on failure. Returns false when the caller should stop.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		respondBindError(ctx, err, out)
		return false
	}

	return true
}

func respondBindError(ctx *gin.Context, err error, out interface{}) {
	rootType := baseStructType(out)

	// validator errors (struct binding tags)
	var validatorErrors validator.ValidationErrors

	if errors.As(err, &validatorErrors) {
		fields := make(map[string]string, len(validatorErrors))
		messages := make([]string, 0, len(validatorErrors))

		for _, fe := range validatorErrors {
			field := jsonFieldName(rootType, fe.Field())
			msg := validationMessage(fe.Tag(), fe.Param())

			fields[field] = msg
			messages = append(messages, field+" "+msg)
		}

		sort.Strings(messages)
		RespondValidation(ctx, messages, fields)
		return
	}

	// type mismatch inside otherwise-valid JSON
	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := jsonFieldName(rootType, typeErr.Field)

		RespondValidation(ctx,
			[]string{field + " must be of type " + typeErr.Type.String()},
			map[string]string{field: "must be of type " + typeErr.Type.String()},
		)
		return
	}

	// malformed JSON or anything else
	RespondBadRequest(ctx, "Invalid request body")
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonFieldName maps a Go struct field to its json tag. Request DTOs here
// are flat, so no nested path handling is needed.
func jsonFieldName(rootType reflect.Type, fieldName string) string {
	if rootType == nil {
		return fieldName
	}

	sf, ok := rootType.FieldByName(fieldName)

	if !ok {
		return fieldName
	}

	tag := sf.Tag.Get("json")

	if tag == "" {
		return fieldName
	}

	name, _, _ := strings.Cut(tag, ",")

	if name == "" || name == "-" {
		return fieldName
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

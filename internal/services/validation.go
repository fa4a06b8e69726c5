package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// PlaceInput точка во входящих данных. Отсутствующая координата
// не должна превращаться в 0, поэтому координаты передаются указателями.
type PlaceInput struct {
	Address string   `json:"address" validate:"required"`
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func NewPlaceInput(address string, lat, lng float64) PlaceInput {
	return PlaceInput{Address: address, Lat: &lat, Lng: &lng}
}

// Place точка модели; вызывается после validateStruct
func (p PlaceInput) Place() models.Place {
	place := models.Place{Address: p.Address}
	if p.Lat != nil {
		place.Lat = *p.Lat
	}
	if p.Lng != nil {
		place.Lng = *p.Lng
	}
	return place
}

func newValidator() *validator.Validate {
	v := validator.New()
	// В сообщениях об ошибках используем имена полей из JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.Validation(fmt.Sprintf("Некорректное поле %s (%s)", fieldPath(fe), fe.Tag()))
	}
	return apperrors.Validation("Неверный формат данных")
}

// fieldPath путь поля без имени корневой структуры: pickup.lat
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// parseTime разбирает время в формате RFC 3339
func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.Validation(fmt.Sprintf("Отсутствует поле %s", field))
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.Validation(fmt.Sprintf("Неверный формат времени %s", field))
	}
	return t.UTC(), nil
}

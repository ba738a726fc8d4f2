// Package geo maps Russian city names to coordinates and timezones used for
// browser geolocation overrides.
package geo

import (
	"fmt"
	"strings"
)

// City is a geolocation preset for the browser session.
type City struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

var cities = map[string]City{
	"москва":          {55.7558, 37.6173, "Europe/Moscow"},
	"санкт-петербург": {59.9343, 30.3351, "Europe/Moscow"},
	"спб":             {59.9343, 30.3351, "Europe/Moscow"},
	"новосибирск":     {55.0084, 82.9357, "Asia/Novosibirsk"},
	"екатеринбург":    {56.8389, 60.6057, "Asia/Yekaterinburg"},
	"казань":          {55.7887, 49.1221, "Europe/Moscow"},
	"нижний новгород": {56.2965, 43.9361, "Europe/Moscow"},
	"челябинск":       {55.1644, 61.4368, "Asia/Yekaterinburg"},
	"самара":          {53.1959, 50.1002, "Europe/Samara"},
	"омск":            {54.9885, 73.3242, "Asia/Omsk"},
	"ростов-на-дону":  {47.2357, 39.7015, "Europe/Moscow"},
	"уфа":             {54.7388, 55.9721, "Asia/Yekaterinburg"},
	"красноярск":      {56.0153, 92.8932, "Asia/Krasnoyarsk"},
	"воронеж":         {51.6720, 39.1843, "Europe/Moscow"},
	"пермь":           {58.0105, 56.2502, "Asia/Yekaterinburg"},
	"волгоград":       {48.7080, 44.5133, "Europe/Volgograd"},
	"краснодар":       {45.0355, 38.9753, "Europe/Moscow"},
	"сочи":            {43.5855, 39.7231, "Europe/Moscow"},
	"владивосток":     {43.1155, 131.8855, "Asia/Vladivostok"},
	"хабаровск":       {48.4827, 135.0838, "Asia/Vladivostok"},
	"иркутск":         {52.2978, 104.2964, "Asia/Irkutsk"},
	"тюмень":          {57.1522, 65.5272, "Asia/Yekaterinburg"},
	"тольятти":        {53.5078, 49.4204, "Europe/Samara"},
	"барнаул":         {53.3548, 83.7698, "Asia/Barnaul"},
	"ижевск":          {56.8527, 53.2114, "Europe/Samara"},
	"ульяновск":       {54.3142, 48.4031, "Europe/Samara"},
	"ярославль":       {57.6261, 39.8845, "Europe/Moscow"},
	"томск":           {56.4846, 84.9476, "Asia/Tomsk"},
	"калининград":     {54.7104, 20.4522, "Europe/Kaliningrad"},
}

// Lookup resolves a city by name, case and whitespace insensitive.
func Lookup(name string) (City, error) {
	city, ok := cities[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return City{}, fmt.Errorf("unknown city: %s", name)
	}
	return city, nil
}

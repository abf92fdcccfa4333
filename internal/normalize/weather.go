package normalize

import (
	"math"

	"github.com/tidwall/gjson"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// Weather defaults applied field by field.
const (
	DefaultTemperature = 20
	DefaultHumidity    = 60
	DefaultCityName    = "서울"
)

// Weather extracts the weather object from a with-weather data document.
// Returns nil when the payload has no weather object.
func Weather(raw []byte) *model.WeatherInfo {
	w := gjson.GetBytes(raw, "weather")
	if !w.IsObject() {
		return nil
	}

	temp := float64(DefaultTemperature)
	if t, ok := firstNumber(w, "temp", "temperature"); ok {
		temp = t
	}

	humidity := DefaultHumidity
	if h, ok := number(w.Get("humidity")); ok {
		humidity = int(math.Round(clamp(h, 0, 100)))
	}

	return &model.WeatherInfo{
		Condition:   firstString(w, "", "main", "condition"),
		Description: firstString(w, "", "description"),
		Temperature: roundHalfUp(temp),
		Humidity:    humidity,
		CityName:    firstString(w, DefaultCityName, "name", "cityName"),
	}
}

// roundHalfUp rounds .5 toward positive infinity, matching the web client.
func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}

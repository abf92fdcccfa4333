package model

import "strings"

// WeatherInfo is the weather at the meeting area, attached to a whole calculation.
type WeatherInfo struct {
	Condition   string `json:"condition"`
	Description string `json:"description"`
	Temperature int    `json:"temperature"`
	Humidity    int    `json:"humidity"`
	CityName    string `json:"cityName"`
}

// Icon returns an emoji for the weather condition.
func (w WeatherInfo) Icon() string {
	switch strings.ToLower(w.Condition) {
	case "clear":
		return "☀️"
	case "clouds":
		return "☁️"
	case "rain":
		return "🌧️"
	case "snow":
		return "❄️"
	default:
		return "🌤️"
	}
}

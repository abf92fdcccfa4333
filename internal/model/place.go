package model

// Place is a point of interest as returned by the backend's nearby search.
type Place struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Address        string   `json:"address"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Rating         float64  `json:"rating"`
	DistanceMeters float64  `json:"distanceMeters"`
	Tags           []string `json:"tags,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// RecommendedPlace is a nearby venue shown on a candidate card.
type RecommendedPlace struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Distance    float64  `json:"distance"`

	// Unavailable marks the placeholder entry used when the lookup failed.
	Unavailable bool `json:"unavailable,omitempty"`
}

// TagInfo describes a filterable place tag.
type TagInfo struct {
	Tag         string `json:"tag"`
	DisplayName string `json:"displayName"`
	Emoji       string `json:"emoji"`
	Category    string `json:"category"`
}

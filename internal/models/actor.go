package models

// Actor is a cast member as listed on a detail page
type Actor struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profilePath,omitempty"`
}

// ActorDetail is the person record shown on an actor page
type ActorDetail struct {
	Actor
	Biography          string `json:"biography"`
	Birthday           string `json:"birthday,omitempty"`
	PlaceOfBirth       string `json:"place_of_birth,omitempty"`
	KnownForDepartment string `json:"known_for_department"`
}

// ActorPage bundles a person with their combined credits
type ActorPage struct {
	Actor       ActorDetail `json:"actor"`
	Credits     []Movie     `json:"credits"`
	BackdropURL string      `json:"backdropUrl,omitempty"`
}

package model

// Place is a location returned by a geocoding provider.
type Place struct {
	Name    string     `json:"name"`
	Address string     `json:"address"`
	Coord   Coordinate `json:"coordinate"`
}

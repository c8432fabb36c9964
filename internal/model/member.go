package model

// RosterMember is one participant eligible for stand-up turns in a
// conversation. ID is the stable identity key (the platform directory object
// id when known, otherwise the channel account id).
type RosterMember struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DirectoryID string `json:"directory_id,omitempty"`
}

package models

// All lists every model migrated at boot.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &PostHistory{}, &LinkedAccount{}}
}

package storage

// NotFoundError is returned when a generation doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "generation not found"
	}

	return "generation not found: " + e.ID
}

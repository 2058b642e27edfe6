package tape

// NotFoundError is returned when a tape doesn't exist in the recorder.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "tape not found"
	}

	return "tape not found: " + e.ID
}

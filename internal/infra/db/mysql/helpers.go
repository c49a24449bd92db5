package mysql

// truncate caps diagnostic messages stored in the database
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

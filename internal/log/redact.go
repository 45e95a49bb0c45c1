package log

// RedactCardID masks an account identifier for log output, keeping only the
// last four characters. Full card ids never appear in logs.
func RedactCardID(id string) string {
	const visible = 4
	if len(id) <= visible {
		return "****"
	}
	return "****" + id[len(id)-visible:]
}

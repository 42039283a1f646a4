package credential

const (
	maskVisible = 4
	maskMarker  = "..."
	maskOpaque  = "****"
)

// Mask redacts a credential for display: the first and last four characters around "...".
// Values shorter than eight characters expose nothing.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) < 2*maskVisible {
		return maskOpaque
	}
	return string(runes[:maskVisible]) + maskMarker + string(runes[len(runes)-maskVisible:])
}

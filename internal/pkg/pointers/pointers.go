package pointers

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func String(v string) *string { return &v }

// StringValue returns "" for a nil pointer.
func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

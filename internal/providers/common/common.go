package common

import "strconv"

const (
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	AcceptLanguage   = "en-US,en;q=0.9"
)

type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// ToString renders the scalar JSON values search indexes use for record
// fields. Anything else (objects, arrays, nil) yields "".
func ToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case jsonNumber:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

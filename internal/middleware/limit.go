package middleware

import "net/http"

// LimitBytes caps request body size. Uploaded spreadsheets should never
// come close to the limit; anything that does is rejected on read.
func LimitBytes(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

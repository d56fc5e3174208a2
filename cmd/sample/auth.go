package main

import (
	"net/http"
	"strings"

	"github.com/bjaus/apischema"
)

type principal struct {
	admin bool
}

func (p principal) IsAuthenticated() bool { return true }
func (p principal) IsAdmin() bool         { return p.admin }

// tokenAuth attaches the principal of an "Authorization: Token <t>" header.
// Unknown tokens stay anonymous.
func tokenAuth(tokens map[string]principal) apischema.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Token ")
			if p, known := tokens[token]; ok && known {
				r = apischema.WithPrincipal(r, p)
			}
			next.ServeHTTP(w, r)
		})
	}
}

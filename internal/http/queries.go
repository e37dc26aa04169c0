package http

import "net/http"

// Bucket and object sub-resources this front end does not serve. Requests
// carrying one are answered with NotImplemented instead of being treated as
// plain object operations.
var unsupportedQueries map[string]bool

func init() {
	unsupportedQueries = make(map[string]bool)
	for _, q := range []string{
		"accelerate",
		"acl",
		"cors",
		"encryption",
		"lifecycle",
		"logging",
		"notification",
		"object-lock",
		"policy",
		"replication",
		"requestPayment",
		"tagging",
		"versioning",
		"website",
	} {
		unsupportedQueries[q] = true
	}
}

func rejectUnsupportedQueries(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, request *http.Request) {
		queries, _ := getQueryKeys(request)
		for _, q := range queries {
			if unsupportedQueries[q] {
				logger.Infof("Rejecting unsupported sub-resource %s on %s %s", q, request.Method, request.URL.Path)
				writeErrorCode(w, request, http.StatusNotImplemented, "NotImplemented", "sub-resource "+q+" is not implemented")
				return
			}
		}

		next.ServeHTTP(w, request)
	}

	return http.HandlerFunc(f)
}

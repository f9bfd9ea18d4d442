// Package httpapi exposes an umbratrace engine over HTTP.
//
// Routes:
//
//	GET    /api/search?q=..&confidence=..&types=social,image
//	POST   /api/search          {"q": "...", "filters": {"confidence": 60, "types": ["social"]}}
//	POST   /api/search/batch    {"queries": ["..."], "filters": {...}}
//	GET    /api/recent?limit=n
//	DELETE /api/recent/{term}
//	DELETE /api/recent
//	GET    /healthz
//	GET    /metrics
//
// The short parameter c is accepted in place of confidence. Errors are
// written as {"error": "..."}.
package httpapi
